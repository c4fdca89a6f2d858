package object

import (
	"fmt"

	"github.com/GitDataAI/git-inner/hash"
)

// Object is a generic, not-yet-typed object as read from storage or a
// packfile entry: a kind tag and its raw payload bytes.
type Object struct {
	Type    Type
	Payload []byte
}

// Hash computes the object's content address.
func (o Object) Hash(v hash.Version) (hash.Hash, error) {
	return hash.Object(v, o.Type.Token(), o.Payload)
}

// AsCommit parses the object's payload as a commit. Returns an error if
// Type is not TypeCommit.
func (o Object) AsCommit(v hash.Version) (Commit, error) {
	if o.Type != TypeCommit {
		return Commit{}, fmt.Errorf("%w: object is %s, not a commit", ErrCommitParse, o.Type)
	}
	return ParseCommit(o.Payload, v)
}

// AsTree parses the object's payload as a tree. Returns an error if Type is
// not TypeTree.
func (o Object) AsTree(v hash.Version) (Tree, error) {
	if o.Type != TypeTree {
		return Tree{}, fmt.Errorf("%w: object is %s, not a tree", ErrTreeParse, o.Type)
	}
	return ParseTree(o.Payload, v)
}

// AsTag parses the object's payload as an annotated tag. Returns an error
// if Type is not TypeTag.
func (o Object) AsTag(v hash.Version) (Tag, error) {
	if o.Type != TypeTag {
		return Tag{}, fmt.Errorf("%w: object is %s, not a tag", ErrTagParse, o.Type)
	}
	return ParseTag(o.Payload, v)
}

// AsBlob returns the object's payload as a Blob. Returns an error if Type
// is not TypeBlob.
func (o Object) AsBlob() (Blob, error) {
	if o.Type != TypeBlob {
		return Blob{}, fmt.Errorf("object is %s, not a blob", o.Type)
	}
	return ParseBlob(o.Payload), nil
}

// FromCommit builds a generic Object from a Commit.
func FromCommit(c Commit) (Object, error) {
	payload, err := c.Bytes()
	if err != nil {
		return Object{}, err
	}
	return Object{Type: TypeCommit, Payload: payload}, nil
}

// FromTree builds a generic Object from a Tree.
func FromTree(t Tree) (Object, error) {
	payload, err := SerializeTree(t)
	if err != nil {
		return Object{}, err
	}
	return Object{Type: TypeTree, Payload: payload}, nil
}

// FromTag builds a generic Object from a Tag.
func FromTag(t Tag) (Object, error) {
	payload, err := t.Bytes()
	if err != nil {
		return Object{}, err
	}
	return Object{Type: TypeTag, Payload: payload}, nil
}

// FromBlob builds a generic Object from a Blob.
func FromBlob(b Blob) Object {
	return Object{Type: TypeBlob, Payload: SerializeBlob(b)}
}

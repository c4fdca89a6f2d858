// Package transaction implements the per-request dispatcher (spec §4.10):
// it binds one inbound request to a repository's odb.DB/refs.Store pair,
// picks the protocol version, and builds the refs advertisement. C8/C9
// read the bound Transaction rather than reaching for a global registry,
// mirroring the teacher's storage.go context-injection pattern
// (packfileStorageKey{} + ToContext/FromContext) but carrying a server-side
// backend pair instead of a client-side packfile cache.
package transaction

import (
	"context"
	"fmt"

	"github.com/GitDataAI/git-inner/capability"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/pktline"
	"github.com/GitDataAI/git-inner/refs"
)

// Service names the git service a request is for, used both as the query
// string value clients send and the advertisement header line content.
type Service string

const (
	ServiceUploadPack  Service = "git-upload-pack"
	ServiceReceivePack Service = "git-receive-pack"
)

// Version is the negotiated smart-protocol wire version.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

// Transaction binds one request to a repository's storage backends. It is
// constructed once per request by the transport layer and handed to C8/C9.
type Transaction struct {
	Repo    string
	Service Service
	Version Version

	DB   odb.DB
	Refs refs.Store
}

// New builds a Transaction bound to repo/service/version over db/store.
func New(repo string, service Service, version Version, db odb.DB, store refs.Store) *Transaction {
	return &Transaction{Repo: repo, Service: service, Version: version, DB: db, Refs: store}
}

type dbKey struct{}
type refsKey struct{}

// ToContext returns a copy of ctx carrying txn's DB and Refs, so deeper
// call layers (delta resolution, object walks) can fetch them without
// threading the Transaction itself through every function signature.
func ToContext(ctx context.Context, txn *Transaction) context.Context {
	ctx = context.WithValue(ctx, dbKey{}, txn.DB)
	ctx = context.WithValue(ctx, refsKey{}, txn.Refs)
	return ctx
}

// DBFromContext returns the odb.DB injected by ToContext, or nil if none.
func DBFromContext(ctx context.Context) odb.DB {
	db, _ := ctx.Value(dbKey{}).(odb.DB)
	return db
}

// RefsFromContext returns the refs.Store injected by ToContext, or nil if none.
func RefsFromContext(ctx context.Context) refs.Store {
	store, _ := ctx.Value(refsKey{}).(refs.Store)
	return store
}

// AdvertiseV1 writes the v1 refs advertisement (spec §4.10): a
// "# service=<svc>" line, a flush, then one pkt-line per ref, the first of
// which carries the NUL-separated capability list.
func (t *Transaction) AdvertiseV1(ctx context.Context) ([]byte, error) {
	refList, err := t.Refs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("transaction: listing refs: %w", err)
	}

	var packs []pktline.Pack
	packs = append(packs, pktline.PackLine(fmt.Sprintf("# service=%s\n", t.Service)))
	packs = append(packs, pktline.FlushPacket)

	caps := t.capabilitySet()
	first := true
	for _, r := range refList {
		h := r.Hash
		if r.IsSymbolic() {
			// HEAD's advertised line still needs a concrete hash; resolve
			// through the target ref.
			target, terr := t.Refs.Get(ctx, r.Target)
			if terr != nil {
				continue
			}
			h = target.Hash
		}

		line := fmt.Sprintf("%s %s", h.String(), refNameOf(r))
		if first {
			line += "\x00" + capability.Render(caps)
			first = false
		}
		packs = append(packs, pktline.PackLine(line+"\n"))
	}
	if first {
		// No refs at all: advertise the capabilities-only zero-hash line
		// Git clients expect from an empty repository.
		packs = append(packs, pktline.PackLine(fmt.Sprintf("%s capabilities^{}\x00%s\n",
			zeroHashHex(t), capability.Render(caps))))
	}
	packs = append(packs, pktline.FlushPacket)

	return pktline.FormatPacks(packs...)
}

// AdvertiseV2 writes the v2 capability advertisement (spec §4.10): a
// "version 2" line, capability lines, then a flush. Actual refs are served
// later in response to command=ls-refs.
func (t *Transaction) AdvertiseV2(_ context.Context) ([]byte, error) {
	packs := []pktline.Pack{
		pktline.PackLine("version 2\n"),
		pktline.PackLine(fmt.Sprintf("agent=%s\n", agentValue)),
		pktline.PackLine("ls-refs=unborn\n"),
	}
	if t.Service == ServiceUploadPack {
		packs = append(packs, pktline.PackLine("fetch=shallow filter wait-for-done\n"))
	}
	packs = append(packs,
		pktline.PackLine("server-option\n"),
		pktline.PackLine(fmt.Sprintf("object-format=%s\n", t.DB.HashVersion())),
		pktline.FlushPacket,
	)
	return pktline.FormatPacks(packs...)
}

const agentValue = "git-inner"

func (t *Transaction) capabilitySet() []capability.Capability {
	switch t.Service {
	case ServiceUploadPack:
		return capability.Upload()
	case ServiceReceivePack:
		return capability.Receive()
	default:
		return capability.Basic()
	}
}

func refNameOf(r refs.Ref) string {
	if r.Name.FullName != "" {
		return r.Name.FullName
	}
	return "HEAD"
}

func zeroHashHex(t *Transaction) string {
	return zeroHex[:t.DB.HashVersion().Size()*2]
}

const zeroHex = "0000000000000000000000000000000000000000000000000000000000000000"

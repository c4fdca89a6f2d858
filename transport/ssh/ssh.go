// Package ssh sketches the boundary a concrete SSH front door (spec §6.2)
// would implement: the command-argument service dispatch and the seam into
// the core engines are specified here using github.com/gliderlabs/ssh's
// types, so a real server only has to supply a Resolver and key/password
// handlers.
package ssh

import (
	"fmt"
	"strings"

	gssh "github.com/gliderlabs/ssh"

	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/receivepack"
	"github.com/GitDataAI/git-inner/refs"
	"github.com/GitDataAI/git-inner/transaction"
	"github.com/GitDataAI/git-inner/uploadpack"
)

// Resolver opens the storage backends a Transaction needs for a
// namespace/repo pair (spec §6.4). A concrete implementation owns the
// document-store/object-store connections; this package only names the seam.
type Resolver interface {
	Open(ctx gssh.Context, namespace, repo string) (odb.DB, refs.Store, error)
}

// NewSessionHandler returns a gliderlabs/ssh Handler that dispatches a
// session's command argument (`git-upload-pack '<path>'` or
// `git-receive-pack '<path>'`, spec §6.2) to the matching core engine,
// reading and writing the negotiated protocol directly over the session.
// Public-key/password authentication is handled upstream by the Server's
// own PublicKeyHandler/PasswordHandler (gliderlabs/ssh's own seam); by the
// time a Handler runs, the session is already authenticated.
func NewSessionHandler(resolver Resolver) gssh.Handler {
	return func(s gssh.Session) {
		service, namespace, repo, err := parseCommand(s.Command())
		if err != nil {
			fmt.Fprintf(s.Stderr(), "git-inner: %s\n", err)
			_ = s.Exit(1)
			return
		}

		db, store, err := resolver.Open(s.Context(), namespace, repo)
		if err != nil {
			fmt.Fprintf(s.Stderr(), "git-inner: %s\n", err)
			_ = s.Exit(1)
			return
		}

		txn := transaction.New(namespace+"/"+repo, service, transaction.V1, db, store)
		advertisement, err := txn.AdvertiseV1(s.Context())
		if err != nil {
			fmt.Fprintf(s.Stderr(), "git-inner: %s\n", err)
			_ = s.Exit(1)
			return
		}
		if _, err := s.Write(advertisement); err != nil {
			return
		}

		switch service {
		case transaction.ServiceUploadPack:
			err = uploadpack.NewEngineV2(db, store).Serve(s.Context(), s, s)
		case transaction.ServiceReceivePack:
			err = receivepack.NewEngine(db, store).Serve(s.Context(), s, s)
		}
		if err != nil {
			fmt.Fprintf(s.Stderr(), "git-inner: %s\n", err)
			_ = s.Exit(1)
			return
		}
		_ = s.Exit(0)
	}
}

// parseCommand extracts the service and namespace/repo from an SSH command
// argument of the form `git-upload-pack '<namespace>/<repo>'`.
func parseCommand(args []string) (service transaction.Service, namespace, repo string, err error) {
	if len(args) != 2 {
		return "", "", "", fmt.Errorf("malformed git command")
	}

	switch args[0] {
	case string(transaction.ServiceUploadPack):
		service = transaction.ServiceUploadPack
	case string(transaction.ServiceReceivePack):
		service = transaction.ServiceReceivePack
	default:
		return "", "", "", fmt.Errorf("unsupported service %q", args[0])
	}

	path := strings.Trim(args[1], "'")
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, ".git")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", "", "", fmt.Errorf("malformed repository path %q", args[1])
	}
	return service, path[:idx], path[idx+1:], nil
}

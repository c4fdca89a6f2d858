// Package http implements the HTTP front door (spec §6.1) as an
// http.Handler. The document-store/object-store connection and
// authentication are named as interfaces only; Handler routes each request
// and glues them to the core engines, so a real adapter only has to
// implement Resolver and Authenticator.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/receivepack"
	"github.com/GitDataAI/git-inner/refs"
	"github.com/GitDataAI/git-inner/transaction"
	"github.com/GitDataAI/git-inner/uploadpack"
)

// AccessLevel is the outcome of authenticating a request against a
// repository, per spec §6.1's Basic-auth/401/403 rules.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessWrite
)

// Authenticator maps an inbound request to an access level for a
// namespace/repo pair. A concrete implementation wraps HTTP Basic auth
// plus an authorization backend; this package only names the seam.
type Authenticator interface {
	Authenticate(r *http.Request, namespace, repo string) (AccessLevel, error)
}

// Resolver opens the storage backends a Transaction needs for a
// namespace/repo pair (spec §6.4). A concrete implementation owns the
// document-store/object-store connections; this package only names the seam.
type Resolver interface {
	Open(ctx context.Context, namespace, repo string) (odb.DB, refs.Store, error)
}

// Handler serves the four routes of spec §6.1 by delegating to the core
// engines. It implements http.Handler directly: route matching is the thin,
// swappable part a real deployment owns, so there is no router/mux to wire.
type Handler struct {
	Resolver      Resolver
	Authenticator Authenticator
}

func NewHandler(resolver Resolver, auth Authenticator) *Handler {
	return &Handler{Resolver: resolver, Authenticator: auth}
}

type route struct {
	namespace string
	repo      string
	action    string // "info-refs", "upload-pack", "receive-pack"
}

func parseRoute(path string) (route, bool) {
	for _, suffix := range []struct {
		tail   string
		action string
	}{
		{"/info/refs", "info-refs"},
		{"/git-upload-pack", "upload-pack"},
		{"/git-receive-pack", "receive-pack"},
	} {
		if rest, ok := strings.CutSuffix(path, suffix.tail); ok {
			rest = strings.TrimSuffix(rest, ".git")
			rest = strings.TrimPrefix(rest, "/")
			idx := strings.LastIndex(rest, "/")
			if idx < 0 {
				return route{}, false
			}
			return route{namespace: rest[:idx], repo: rest[idx+1:], action: suffix.action}, true
		}
	}
	return route{}, false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, ok := parseRoute(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	service := serviceOf(rt, r)
	if service == "" {
		http.Error(w, "unknown service", http.StatusBadRequest)
		return
	}

	level, err := h.Authenticator.Authenticate(r, rt.namespace, rt.repo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if level == AccessNone {
		w.Header().Set("WWW-Authenticate", `Basic realm="git-inner"`)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if service == transaction.ServiceReceivePack && level < AccessWrite {
		http.Error(w, "insufficient access", http.StatusForbidden)
		return
	}

	db, store, err := h.Resolver.Open(r.Context(), rt.namespace, rt.repo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	version := transaction.V1
	if r.Header.Get("Git-Protocol") == "version=2" {
		version = transaction.V2
	}
	txn := transaction.New(rt.namespace+"/"+rt.repo, service, version, db, store)

	switch rt.action {
	case "info-refs":
		h.serveInfoRefs(w, r, txn)
	case "upload-pack":
		engine := uploadpack.NewEngineV2(db, store)
		serve := engine.Serve
		if txn.Version == transaction.V2 {
			serve = engine.ServeV2
		}
		h.servePack(w, r, txn, serve)
	case "receive-pack":
		h.servePack(w, r, txn, receivepack.NewEngine(db, store).Serve)
	}
}

func serviceOf(rt route, r *http.Request) transaction.Service {
	if rt.action == "info-refs" {
		switch r.URL.Query().Get("service") {
		case string(transaction.ServiceUploadPack):
			return transaction.ServiceUploadPack
		case string(transaction.ServiceReceivePack):
			return transaction.ServiceReceivePack
		default:
			return ""
		}
	}
	if rt.action == "upload-pack" {
		return transaction.ServiceUploadPack
	}
	return transaction.ServiceReceivePack
}

func setNoCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Cache-Control", "no-cache, max-age=0, must-revalidate")
	w.Header().Set("Expires", "Fri, 01 Jan 1980 00:00:00 GMT")
}

func (h *Handler) serveInfoRefs(w http.ResponseWriter, r *http.Request, txn *transaction.Transaction) {
	setNoCacheHeaders(w)
	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-advertisement", txn.Service))

	var (
		out []byte
		err error
	)
	if txn.Version == transaction.V2 {
		out, err = txn.AdvertiseV2(r.Context())
	} else {
		out, err = txn.AdvertiseV1(r.Context())
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *Handler) servePack(w http.ResponseWriter, r *http.Request, txn *transaction.Transaction, serve func(context.Context, io.Reader, io.Writer) error) {
	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-result", txn.Service))
	w.WriteHeader(http.StatusOK)
	// The pkt-line/side-band error channel already carries any failure to
	// the client; headers are already flushed by the time serve returns.
	_ = serve(r.Context(), r.Body, w)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gssh "github.com/gliderlabs/ssh"
	"github.com/spf13/cobra"

	"github.com/GitDataAI/git-inner/config"
	"github.com/GitDataAI/git-inner/log"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/refs"
	"github.com/GitDataAI/git-inner/transaction"
	thttp "github.com/GitDataAI/git-inner/transport/http"
	tssh "github.com/GitDataAI/git-inner/transport/ssh"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and SSH front doors",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("git-inner-server: loading config: %w", err)
	}

	logger := log.NewStdLogger(cmd.OutOrStdout(), log.ParseLevel(cfg.LogLevel))
	ctx := log.ToContext(cmd.Context(), logger)

	registry := odb.NewMemRegistry(time.Now)
	backend := transaction.NewMemBackend(cfg.DefaultBranch)

	httpHandler := thttp.NewHandler(httpResolver{registry, backend}, allowAllAuthenticator{})
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: httpHandler}

	sshServer := &gssh.Server{
		Addr:    cfg.SSHAddr,
		Handler: tssh.NewSessionHandler(sshResolver{registry, backend}),
	}

	errs := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errs <- httpServer.ListenAndServe()
	}()
	go func() {
		logger.Info("ssh listening", "addr", cfg.SSHAddr)
		errs <- sshServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("git-inner-server: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// httpResolver/sshResolver adapt the in-memory Registry+RepoBackend pair to
// each transport's own Resolver seam (their parameter types differ: plain
// context.Context for HTTP, gliderlabs/ssh's Context for SSH).
type httpResolver struct {
	registry odb.Registry
	backend  transaction.RepoBackend
}

func (r httpResolver) Open(ctx context.Context, namespace, repo string) (odb.DB, refs.Store, error) {
	return openRepo(ctx, r.registry, r.backend, namespace, repo)
}

type sshResolver struct {
	registry odb.Registry
	backend  transaction.RepoBackend
}

func (r sshResolver) Open(ctx gssh.Context, namespace, repo string) (odb.DB, refs.Store, error) {
	return openRepo(ctx, r.registry, r.backend, namespace, repo)
}

func openRepo(ctx context.Context, registry odb.Registry, backend transaction.RepoBackend, namespace, repo string) (odb.DB, refs.Store, error) {
	name := namespace + "/" + repo
	info, err := registry.Info(ctx, name)
	if err != nil {
		info, err = registry.Create(ctx, name, odb.VisibilityPrivate)
		if err != nil {
			return nil, nil, fmt.Errorf("git-inner-server: %w", err)
		}
	}
	return backend.Open(ctx, name, info.HashVersion)
}

// allowAllAuthenticator grants write access to every request. A real
// deployment supplies its own thttp.Authenticator backed by HTTP Basic
// credentials and an authorization store (spec §6.1, an explicit non-goal).
type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(*http.Request, string, string) (thttp.AccessLevel, error) {
	return thttp.AccessWrite, nil
}

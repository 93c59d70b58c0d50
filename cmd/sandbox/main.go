package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"hivechat/internal/config"
	"hivechat/internal/httpserver"
	"hivechat/internal/logging"
	"hivechat/internal/security"
	"hivechat/internal/service"
	"hivechat/internal/store/sqlite"
	"hivechat/internal/ws"
)

func main() {
	app := &cli.App{
		Name:  "sandbox",
		Usage: "local stand-in for the SocialHive chat backend",
		Commands: []*cli.Command{
			serveCommand(),
			addUserCommand(),
			tokenCommand(),
			followCommand(),
			addGroupCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sandbox:", err)
		os.Exit(1)
	}
}

// env loads configuration, the logger and a migrated database.
type env struct {
	cfg    *config.Sandbox
	log    zerolog.Logger
	db     *sql.DB
	tokens *security.TokenService
}

func setup() (*env, error) {
	cfg, err := config.LoadSandbox()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &env{
		cfg:    cfg,
		log:    log,
		db:     db,
		tokens: security.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
	}, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the REST API and websocket relay",
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			hub := ws.NewHub(logging.Component(e.log, "ws"))
			router := httpserver.NewRouter(e.cfg, e.db, hub, e.tokens, logging.Component(e.log, "http"))

			srv := &http.Server{
				Addr:              e.cfg.HTTPAddr(),
				Handler:           router,
				ReadHeaderTimeout: 15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				e.log.Info().Str("addr", e.cfg.HTTPAddr()).Msg("starting sandbox")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				e.log.Info().Msg("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func addUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "adduser",
		Usage: "create a user and print its id and a bearer token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "avatar"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			u, err := service.NewUserService(sqlite.NewUserRepo(e.db)).Create(c.Context, c.String("name"), c.String("avatar"))
			if err != nil {
				return err
			}
			tok, err := e.tokens.CreateForUser(u.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "HIVECHAT_USER_ID=%s\nHIVECHAT_TOKEN=%s\n", u.ID, tok)
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true, Usage: "user id or username"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (defaults to SANDBOX_TOKEN_TTL)"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			id, err := resolveUser(c.Context, e.db, c.String("user"))
			if err != nil {
				return err
			}
			ttl := e.cfg.TokenTTL
			if c.IsSet("ttl") {
				ttl = c.Duration("ttl")
			}
			tok, err := e.tokens.CreateWithTTL(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, tok)
			return nil
		},
	}
}

func followCommand() *cli.Command {
	return &cli.Command{
		Name:  "follow",
		Usage: "make one user follow another",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "follower", Required: true},
			&cli.StringFlag{Name: "user", Required: true},
		},
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			follower, err := resolveUser(c.Context, e.db, c.String("follower"))
			if err != nil {
				return err
			}
			user, err := resolveUser(c.Context, e.db, c.String("user"))
			if err != nil {
				return err
			}
			return service.NewUserService(sqlite.NewUserRepo(e.db)).Follow(c.Context, follower, user)
		},
	}
}

func addGroupCommand() *cli.Command {
	return &cli.Command{
		Name:  "addgroup",
		Usage: "create a community group with its group chat",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "admin", Required: true},
			&cli.StringSliceFlag{Name: "member"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			admin, err := resolveUser(c.Context, e.db, c.String("admin"))
			if err != nil {
				return err
			}
			var members []string
			for _, m := range c.StringSlice("member") {
				id, err := resolveUser(c.Context, e.db, m)
				if err != nil {
					return err
				}
				members = append(members, id)
			}

			users := sqlite.NewUserRepo(e.db)
			chats := service.NewChatService(
				users,
				sqlite.NewChatRepo(e.db),
				sqlite.NewParticipantRepo(e.db),
				sqlite.NewMessageRepo(e.db),
				sqlite.NewGroupRepo(e.db),
				nil,
			)
			group, chat, err := chats.CreateGroup(c.Context, admin, service.GroupCreateInput{
				Name:           c.String("name"),
				ParticipantIDs: members,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "group %s chat %s\n", group.ID, chat.ID)
			return nil
		},
	}
}

// resolveUser accepts either a user id or a username.
func resolveUser(ctx context.Context, db *sql.DB, ref string) (string, error) {
	users := sqlite.NewUserRepo(db)
	u, err := users.GetByID(ctx, ref)
	if err != nil {
		return "", err
	}
	if u == nil {
		if u, err = users.GetByUsername(ctx, ref); err != nil {
			return "", err
		}
	}
	if u == nil {
		return "", fmt.Errorf("unknown user %q", ref)
	}
	return u.ID, nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"hivechat/internal/api"
	"hivechat/internal/attachment"
	"hivechat/internal/config"
	"hivechat/internal/domain"
	"hivechat/internal/logging"
	"hivechat/internal/realtime"
	"hivechat/internal/render"
	"hivechat/internal/session"
)

func main() {
	app := &cli.App{
		Name:  "hivechat",
		Usage: "terminal client for SocialHive chats",
		Commands: []*cli.Command{
			chatsCommand(),
			openCommand(),
			sendCommand(),
			editCommand(),
			deleteCommand(),
			attachCommand(),
			shareCommand(),
			copyCommand(),
			linkCommand(),
			removeChatCommand(),
			leaveCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "hivechat:", err)
		os.Exit(1)
	}
}

// client is a signed-in session with its collaborators.
type client struct {
	cfg      *config.Client
	log      zerolog.Logger
	http     *http.Client
	session  *session.Session
	renderer *render.Renderer
	pipeline *attachment.Pipeline
	conn     *realtime.Conn
}

// stderrNotifier prints user-facing failures.
type stderrNotifier struct{}

func (stderrNotifier) Notify(msg string, err error) {
	fmt.Fprintf(os.Stderr, "! %s: %v\n", msg, err)
}

// offlineSocket stands in when the event channel is unreachable; REST calls
// keep working without live updates.
type offlineSocket struct{}

func (offlineSocket) Emit(realtime.Event, any) error { return realtime.ErrClosed }

func connect(ctx context.Context) (*client, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	patterns := domain.Patterns{MediaHost: cfg.MediaHost, ObjectHostSuffix: cfg.ObjectHostSfx}

	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	backend := api.NewWithHTTPClient(cfg.APIURL, cfg.Token, hc, logging.Component(log, "api"))
	links := render.NewLinkTable(cfg.LinkTableSize)
	renderer := render.New(links, patterns, cfg.ProfileURL, logging.Component(log, "render"))

	hub := realtime.NewHub(logging.Component(log, "realtime"))
	var socket session.Socket = offlineSocket{}
	conn, err := realtime.Dial(ctx, cfg.SocketURL, cfg.Token, hub, logging.Component(log, "realtime"))
	if err != nil {
		log.Warn().Err(err).Msg("live updates unavailable")
	} else {
		socket = conn
	}

	sess := session.New(backend, socket, session.Options{
		SelfID:        cfg.UserID,
		TypingTimeout: cfg.TypingTimeout,
		ModeratorIDs:  cfg.ModeratorIDs,
		Patterns:      patterns,
		Notifier:      stderrNotifier{},
		Links:         links,
	}, log)
	sess.Bind(hub)
	if conn != nil {
		go func() {
			if err := conn.Run(ctx); err != nil {
				log.Debug().Err(err).Msg("event channel closed")
			}
		}()
	}

	pipeline, err := newPipeline(ctx, cfg, hc, logging.Component(log, "attachment"))
	if err != nil {
		sess.Close()
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}

	return &client{
		cfg:      cfg,
		log:      log,
		http:     hc,
		session:  sess,
		renderer: renderer,
		pipeline: pipeline,
		conn:     conn,
	}, nil
}

func newPipeline(ctx context.Context, cfg *config.Client, hc *http.Client, log zerolog.Logger) (*attachment.Pipeline, error) {
	opts := []attachment.Option{
		attachment.WithCropper(attachment.CenterCropper{Size: cfg.CropSize}),
		attachment.WithMaxBytes(cfg.UploadMaxBytes),
	}
	if cfg.ObjectStoreEnabled() {
		s3, err := attachment.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		opts = append(opts, attachment.WithObjectStore(s3))
	}
	if cfg.MediaStoreEnabled() {
		opts = append(opts, attachment.WithMediaStore(
			attachment.NewHTTPMediaStore(cfg.MediaImageURL, cfg.MediaVideoURL, cfg.MediaUploadPreset, hc),
		))
	}
	return attachment.NewPipeline(log, opts...), nil
}

func (c *client) Close() {
	c.session.Close()
	if c.conn != nil {
		c.conn.Close()
	}
}

// withClient runs fn with a connected client whose chat list is loaded.
func withClient(fn func(c *cli.Context, cl *client) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cl, err := connect(c.Context)
		if err != nil {
			return err
		}
		defer cl.Close()
		if err := cl.session.LoadChats(c.Context); err != nil {
			return err
		}
		return fn(c, cl)
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"hivechat/internal/attachment"
	"hivechat/internal/domain"
	"hivechat/internal/render"
	"hivechat/internal/session"
)

func chatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "chats",
		Usage: "list chats, most recent activity first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "case-insensitive name filter"},
		},
		Action: withClient(func(c *cli.Context, cl *client) error {
			cl.session.SetFilter(c.String("filter"))
			self := cl.session.SelfID()
			w := c.App.Writer
			for _, chat := range cl.session.Chats() {
				preview := ""
				if chat.LastMessage != nil {
					preview = domain.Snippet(render.PlainText(chat.LastMessage))
				}
				when := ""
				if t, ok := chat.LastActivity(); ok {
					when = t.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", chat.ID, chat.DisplayName(self), when, preview)
			}
			return nil
		}),
	}
}

func openCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "print a chat's history",
		ArgsUsage: "CHAT_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "html", Usage: "print rendered HTML instead of plain text"},
			&cli.BoolFlag{Name: "follow", Usage: "keep printing new messages until interrupted"},
		},
		Action: withClient(func(c *cli.Context, cl *client) error {
			chatID := c.Args().First()
			if chatID == "" {
				return cli.ShowSubcommandHelp(c)
			}
			if err := cl.session.Open(c.Context, chatID); err != nil && !errors.Is(err, domain.ErrNoMessages) {
				return err
			}

			seen := make(map[string]struct{})
			printNew := func(msgs []*domain.Message) {
				for _, m := range msgs {
					if _, ok := seen[m.ID]; ok {
						continue
					}
					seen[m.ID] = struct{}{}
					cl.printMessage(c.App.Writer, m, c.Bool("html"))
				}
			}
			printNew(cl.session.Snapshot().Messages)
			if !c.Bool("follow") {
				return nil
			}

			feed := newLatest()
			unsubscribe := cl.session.Subscribe(feed.put)
			defer unsubscribe()
			for {
				select {
				case <-c.Context.Done():
					return nil
				case s := <-feed.updates():
					if s.OpenChatID != chatID {
						return nil
					}
					printNew(s.Messages)
					if len(s.Typing) > 0 {
						fmt.Fprintf(c.App.ErrWriter, "… %s typing\n", strings.Join(s.Typing, ", "))
					}
				}
			}
		}),
	}
}

func (cl *client) printMessage(w io.Writer, m *domain.Message, asHTML bool) {
	if asHTML {
		out, err := cl.renderer.Render(m)
		if err != nil {
			cl.log.Warn().Err(err).Str("message_id", m.ID).Msg("render")
			return
		}
		fmt.Fprintln(w, out)
		return
	}
	body := render.PlainText(m)
	if m.Kind.IsAttachment() {
		body = fmt.Sprintf("[%s] %s", m.Kind, render.DownloadName(m))
	}
	edited := ""
	if m.Edited {
		edited = " (edited)"
	}
	fmt.Fprintf(w, "%s  %s  %s: %s%s\n", m.ID, m.CreatedAt.Local().Format(time.Kitchen), m.Sender.Username, body, edited)
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "send a text message",
		ArgsUsage: "CHAT_ID TEXT...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reply-to", Usage: "id of the message being answered"},
		},
		Action: withClient(func(c *cli.Context, cl *client) error {
			if c.NArg() < 2 {
				return cli.ShowSubcommandHelp(c)
			}
			if err := openQuiet(c, cl, c.Args().First()); err != nil {
				return err
			}
			cl.session.Keystroke()
			m, err := cl.session.Send(c.Context, strings.Join(c.Args().Tail(), " "), c.String("reply-to"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, m.ID)
			return nil
		}),
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "edit one of your messages",
		ArgsUsage: "CHAT_ID MESSAGE_ID TEXT...",
		Action: withClient(func(c *cli.Context, cl *client) error {
			if c.NArg() < 3 {
				return cli.ShowSubcommandHelp(c)
			}
			if err := openQuiet(c, cl, c.Args().Get(0)); err != nil {
				return err
			}
			_, err := cl.session.EditMessage(c.Context, c.Args().Get(1), strings.Join(c.Args().Slice()[2:], " "))
			return err
		}),
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete a message",
		ArgsUsage: "CHAT_ID MESSAGE_ID",
		Action: withClient(func(c *cli.Context, cl *client) error {
			if c.NArg() != 2 {
				return cli.ShowSubcommandHelp(c)
			}
			if err := openQuiet(c, cl, c.Args().Get(0)); err != nil {
				return err
			}
			return cl.session.DeleteMessage(c.Context, c.Args().Get(1))
		}),
	}
}

func attachCommand() *cli.Command {
	return &cli.Command{
		Name:      "attach",
		Usage:     "upload files and send them as messages",
		ArgsUsage: "CHAT_ID FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Value: "auto", Usage: "file, media, recording or auto"},
		},
		Action: withClient(func(c *cli.Context, cl *client) error {
			if c.NArg() < 2 {
				return cli.ShowSubcommandHelp(c)
			}
			assets := make([]attachment.Asset, 0, c.NArg()-1)
			for _, p := range c.Args().Tail() {
				a, err := readAsset(p)
				if err != nil {
					return err
				}
				assets = append(assets, a)
			}
			drafts, err := buildDrafts(c.String("mode"), assets)
			if err != nil {
				return err
			}
			if err := openQuiet(c, cl, c.Args().First()); err != nil {
				return err
			}

			var errs []error
			for _, d := range drafts {
				if err := cl.pipeline.Send(c.Context, d, cl.session.SendAttachment); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}),
	}
}

// buildDrafts groups assets the way the composer would: images and videos
// travel together, audio as a recording and anything else one file at a time.
func buildDrafts(mode string, assets []attachment.Asset) ([]*attachment.Draft, error) {
	switch mode {
	case "media":
		d, err := attachment.NewMediaDraft(assets...)
		if err != nil {
			return nil, err
		}
		return []*attachment.Draft{d}, nil
	case "file", "recording", "auto":
	default:
		return nil, fmt.Errorf("unknown mode %q: %w", mode, domain.ErrInvalidInput)
	}

	var (
		drafts []*attachment.Draft
		media  []attachment.Asset
	)
	for _, a := range assets {
		var (
			d   *attachment.Draft
			err error
		)
		switch {
		case mode == "auto" && (a.Kind() == domain.KindImage || a.Kind() == domain.KindVideo):
			media = append(media, a)
			continue
		case mode == "recording" || (mode == "auto" && a.Kind() == domain.KindAudio):
			d, err = attachment.NewRecordingDraft(a, nil)
		default:
			d, err = attachment.NewFileDraft(a)
		}
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	if len(media) > 0 {
		d, err := attachment.NewMediaDraft(media...)
		if err != nil {
			return nil, err
		}
		drafts = append([]*attachment.Draft{d}, drafts...)
	}
	return drafts, nil
}

func readAsset(path string) (attachment.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return attachment.Asset{}, err
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return attachment.Asset{Filename: filepath.Base(path), ContentType: ct, Data: data}, nil
}

func shareCommand() *cli.Command {
	return &cli.Command{
		Name:      "share",
		Usage:     "forward content to followers or chats; without targets, list them",
		ArgsUsage: "[CONTENT]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "user", Usage: "follower id to send to"},
			&cli.StringSliceFlag{Name: "chat", Usage: "chat id to send to"},
		},
		Action: withClient(func(c *cli.Context, cl *client) error {
			users, chats := c.StringSlice("user"), c.StringSlice("chat")
			if len(users) == 0 && len(chats) == 0 {
				targets, err := cl.session.ShareTargets(c.Context)
				if err != nil {
					return err
				}
				for _, u := range targets.Followers {
					fmt.Fprintf(c.App.Writer, "user\t%s\t%s\n", u.ID, u.Username)
				}
				for _, g := range targets.Groups {
					fmt.Fprintf(c.App.Writer, "group\t%s\t%s\n", g.ChatID, g.Name)
				}
				return nil
			}

			content := strings.Join(c.Args().Slice(), " ")
			var targets []session.ShareTarget
			for _, id := range users {
				targets = append(targets, session.ShareTarget{UserID: id})
			}
			for _, id := range chats {
				targets = append(targets, session.ShareTarget{ChatID: id})
			}
			return cl.session.Share(c.Context, content, "", targets...)
		}),
	}
}

func copyCommand() *cli.Command {
	return &cli.Command{
		Name:      "copy",
		Usage:     "write a message's clipboard payload (text, or PNG for images)",
		ArgsUsage: "CHAT_ID MESSAGE_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
		},
		Action: withClient(func(c *cli.Context, cl *client) error {
			if c.NArg() != 2 {
				return cli.ShowSubcommandHelp(c)
			}
			if err := openQuiet(c, cl, c.Args().Get(0)); err != nil {
				return err
			}
			msg, err := openMessage(cl, c.Args().Get(1))
			if err != nil {
				return err
			}

			clip := cl.renderer.Clipboard(c.Context, cl.http, msg)
			if out := c.String("out"); out != "" {
				if err := os.WriteFile(out, clip.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "wrote %s (%s)\n", out, clip.MIME)
				return nil
			}
			_, err = c.App.Writer.Write(clip.Data)
			return err
		}),
	}
}

func linkCommand() *cli.Command {
	return &cli.Command{
		Name:      "link",
		Usage:     "print the target behind a rendered link or mention",
		ArgsUsage: "CHAT_ID MESSAGE_ID [INDEX]",
		Action: withClient(func(c *cli.Context, cl *client) error {
			if c.NArg() < 2 {
				return cli.ShowSubcommandHelp(c)
			}
			if err := openQuiet(c, cl, c.Args().Get(0)); err != nil {
				return err
			}
			msg, err := openMessage(cl, c.Args().Get(1))
			if err != nil {
				return err
			}
			if _, err := cl.renderer.Render(msg); err != nil {
				return err
			}
			n := 0
			if raw := c.Args().Get(2); raw != "" {
				if n, err = strconv.Atoi(raw); err != nil {
					return fmt.Errorf("index %q: %w", raw, domain.ErrInvalidInput)
				}
			}
			target, ok := cl.renderer.ResolveLink(render.Token(msg.ID, n))
			if !ok {
				return fmt.Errorf("link %d of %s: %w", n, msg.ID, domain.ErrNotFound)
			}
			fmt.Fprintln(c.App.Writer, target)
			return nil
		}),
	}
}

func removeChatCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm-chat",
		Usage:     "delete a chat",
		ArgsUsage: "CHAT_ID",
		Action: withClient(func(c *cli.Context, cl *client) error {
			if c.NArg() != 1 {
				return cli.ShowSubcommandHelp(c)
			}
			return cl.session.DeleteChat(c.Context, c.Args().First())
		}),
	}
}

func leaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "leave",
		Usage:     "leave a group chat",
		ArgsUsage: "CHAT_ID",
		Action: withClient(func(c *cli.Context, cl *client) error {
			if c.NArg() != 1 {
				return cli.ShowSubcommandHelp(c)
			}
			return cl.session.LeaveGroup(c.Context, c.Args().First())
		}),
	}
}

func openMessage(cl *client, id string) (*domain.Message, error) {
	for _, m := range cl.session.Snapshot().Messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
}

// openQuiet opens a chat without printing it. An empty history is fine.
func openQuiet(c *cli.Context, cl *client, chatID string) error {
	if err := cl.session.Open(c.Context, chatID); err != nil && !errors.Is(err, domain.ErrNoMessages) {
		return err
	}
	return nil
}

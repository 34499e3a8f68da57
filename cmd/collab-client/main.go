package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"collab-backend/internal/apiclient"
	"collab-backend/internal/auth"
	"collab-backend/internal/delta"
	"collab-backend/internal/logger"
	"collab-backend/internal/model"
	"collab-backend/internal/presence"
	"collab-backend/internal/session"
	"collab-backend/internal/socketclient"
)

// 헤드리스 편집 참여자: 문서를 열고, 선택적으로 텍스트를 입력하고, 원격 변경을 로그로 남긴다
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base url")
	token := flag.String("token", os.Getenv("COLLAB_TOKEN"), "access token")
	kind := flag.String("kind", "file", "document kind (workspace, folder, file)")
	documentID := flag.String("id", "", "document id")
	text := flag.String("type", "", "text to append after the document loads")
	debounce := flag.Duration("debounce", session.DefaultQuietWindow, "save debounce window")
	polling := flag.Bool("polling", false, "use long-polling only")
	pretty := flag.Bool("pretty", true, "console log output")
	flag.Parse()

	logger.Setup(logger.Config{Level: "info", Pretty: *pretty})

	docKind, ok := model.ParseDocumentKind(*kind)
	if !ok {
		log.Fatal().Str("kind", *kind).Msg("Unknown document kind")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := apiclient.New(*baseURL, *token)
	identity := auth.Identity{ID: "anonymous", Handle: "anonymous"}
	if *token != "" {
		me, err := api.Me(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Token rejected")
		}
		identity = *me
	}

	opts := socketclient.Options{URL: *baseURL, Token: *token}
	if *polling {
		opts.Transports = []string{socketclient.TransportPolling}
	}
	sock := socketclient.New(opts)
	defer sock.Close()

	var presenceDialer session.PresenceDialer
	if *token != "" {
		presenceDialer = session.DialPresence(*baseURL, *token)
	}

	sess := session.New(session.Config{
		Identity:    identity,
		QuietWindow: *debounce,
		Persistence: api,
		Transport:   sock,
		Presence:    presenceDialer,
		OnStatus: func(s session.Status) {
			log.Info().Str("status", s.String()).Msg("💾 Save status")
		},
		OnError: func(err error) {
			log.Error().Err(err).Msg("Save failed")
		},
		OnNavigateAway: func(id string, err error) {
			log.Warn().Err(err).Str("document", id).Msg("Document unavailable")
			stop()
		},
		OnRemoteChange: func(id string, change delta.Delta) {
			log.Info().Str("document", id).Int("ops", len(change.Ops)).Msg("✏️ Remote change")
		},
		OnPresence: func(id string, records []presence.Record) {
			handles := make([]string, 0, len(records))
			for _, r := range records {
				handles = append(handles, r.Handle)
			}
			log.Info().Str("document", id).Strs("present", handles).Msg("👥 Presence")
		},
	})

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := sock.Connect(connectCtx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Relay connection failed")
	}
	log.Info().Str("transport", sock.Transport()).Str("as", identity.Handle).Msg("✅ Connected")

	if *documentID == "" {
		ack, err := sess.Ping(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Ping failed")
		}
		log.Info().Bool("ok", ack.OK).Str("socket", ack.ServerSocketID).Msg("🏓 Pong")
		return
	}

	if err := sess.Open(ctx, docKind, *documentID); err != nil {
		log.Fatal().Err(err).Msg("❌ Open failed")
	}
	log.Info().Str("document", *documentID).Str("text", sess.Text()).Msg("📄 Loaded")

	if *text != "" {
		end := sess.Contents().Length() - 1
		if err := sess.LocalChange(*delta.New().Retain(end, nil).Insert(*text, nil)); err != nil {
			log.Error().Err(err).Msg("Edit rejected")
		}
	}

	<-ctx.Done()
	log.Info().Msg("🛑 Leaving document...")
	if err := sess.Close(); err != nil {
		log.Warn().Err(err).Msg("Presence close failed")
	}
	log.Info().Str("text", sess.Text()).Msg("Final contents")
}

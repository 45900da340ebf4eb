package main

import (
	"net/http"
	"os"
	"time"

	"petsy-backend/internal/adapters/auth/jwtverifier"
	"petsy-backend/internal/adapters/broker/rabbitmq"
	"petsy-backend/internal/domain/notifications"
	"petsy-backend/internal/platform/logger"
	"petsy-backend/internal/ports/auth"
	"petsy-backend/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	// Sin secret queda el modo dev (X-Debug-User-ID).
	var verifier auth.AuthVerifier
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		verifier = jwtverifier.New(secret)
	}

	var broker notifications.Publisher
	if url := os.Getenv("AMQP_URL"); url != "" {
		pub, err := rabbitmq.New(url, "petsy.notifications", log)
		if err != nil {
			log.Warn().Err(err).Msg("broker unavailable, continuing without it")
		} else {
			broker = pub
			defer pub.Close()
		}
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		Broker:       broker,
		Log:          log,
	})

	// Sin Read/WriteTimeout globales: /ws mantiene conexiones largas.
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

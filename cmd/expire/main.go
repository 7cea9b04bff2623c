// Command expire moves listings whose paid package ran out to the
// configured expired-listing package. It runs once and exits; schedule it
// from cron.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ManuelReschke/Bizdir/internal/pkg/billing"
	"github.com/ManuelReschke/Bizdir/internal/pkg/bootstrap"
	"github.com/ManuelReschke/Bizdir/internal/pkg/cache"
	"github.com/ManuelReschke/Bizdir/internal/pkg/database"
	"github.com/ManuelReschke/Bizdir/internal/pkg/env"
	"github.com/ManuelReschke/Bizdir/internal/pkg/logging"
	"github.com/ManuelReschke/Bizdir/internal/pkg/mail"
)

func main() {
	asOfFlag := flag.String("as-of", "", "expiry cut-off in RFC3339, defaults to now")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	env.SetupEnvFile()
	log := logging.New()

	asOf := time.Now()
	if *asOfFlag != "" {
		t, err := time.Parse(time.RFC3339, *asOfFlag)
		if err != nil {
			log.WithError(err).Fatal("invalid -as-of")
		}
		asOf = t
	}

	db, err := database.Open(log)
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}

	svc := bootstrap.NewServices(bootstrap.Infra{
		DB:      db,
		Redis:   cache.New(log),
		Gateway: billing.NewStripeGateway(env.GetEnv("STRIPE_SECRET_KEY", "")),
		Mailer:  mail.NewSMTPMailer(mail.ConfigFromEnv(), log),
		Log:     log,
	}, bootstrap.ConfigFromEnv(log))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	n, err := svc.Expiry.ExpireListings(ctx, asOf)
	cancel()
	if err != nil {
		log.WithError(err).WithField("expired", n).Error("listing expiry failed")
		os.Exit(1)
	}
	log.WithField("expired", n).Info("listing expiry finished")
}

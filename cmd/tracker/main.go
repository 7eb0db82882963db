// Command tracker is a driver-side console: it authenticates, keeps the
// realtime link alive, streams location samples for one vehicle and prints
// incoming notifications.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campustransit/client/api"
	"campustransit/client/config"
	"campustransit/client/realtime"
	"campustransit/client/session"
)

const locationInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to client config YAML")
	email := flag.String("email", "", "login email, used when no stored session exists")
	password := flag.String("password", "", "login password")
	vehicleID := flag.String("vehicle", "", "vehicle to report positions for")
	lat := flag.Float64("lat", 48.7889, "starting latitude")
	lng := flag.Float64("lng", 2.3638, "starting longitude")
	flag.Parse()

	if *vehicleID == "" {
		log.Fatal("missing -vehicle")
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.New(cfg.Server.BaseURL)
	manager := session.NewManager(client, cfg.Session.File)

	sess := manager.Restore()
	if !sess.IsAuthenticated() {
		if *email == "" || *password == "" {
			log.Fatal("no stored session, pass -email and -password to log in")
		}
		sess, err = manager.Login(ctx, *email, *password)
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
	}
	if sess.User.Role != "driver" {
		log.Fatalf("tracker needs a driver account, got role %s", sess.User.Role)
	}
	log.Printf("logged in as %s %s", sess.User.FirstName, sess.User.LastName)

	channel := realtime.New(cfg.Server.WSURL, sess.Token)
	defer channel.Close()
	go channel.Run(ctx)

	go printNotifications(ctx, channel.Notifications())

	ticker := time.NewTicker(locationInterval)
	defer ticker.Stop()

	position := realtime.Position{
		VehicleID: *vehicleID,
		DriverID:  sess.User.ID,
		Latitude:  *lat,
		Longitude: *lng,
	}
	for {
		select {
		case <-ctx.Done():
			log.Print("tracker stopping")
			return
		case <-ticker.C:
			// Small drift keeps repeated samples distinguishable in dev.
			position.Latitude += 0.0001
			position.Longitude += 0.0001
			position.Timestamp = time.Now().UTC()
			channel.SendLocation(position)
		}
	}
}

// printNotifications logs each queue entry once, newest arrivals included.
func printNotifications(ctx context.Context, queue *realtime.Queue) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastSeen uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			items := queue.List()
			for i := len(items) - 1; i >= 0; i-- {
				n := items[i]
				if n.ID <= lastSeen {
					continue
				}
				lastSeen = n.ID
				log.Printf("[%s] %s: %s", n.Type, n.Title, n.Message)
			}
		}
	}
}

// seed-admin creates the first admin user and, optionally, the nurse roster.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-admin -username admin -name "Rosa" -password '...' -nurses "Ana,Beatriz"
//
// Running it again is safe: existing users and nurses are left untouched.
//
// It also switches a login on or off (sessions of a disabled user end at once):
//
//	go run ./cmd/seed-admin -disable tesorero
//	go run ./cmd/seed-admin -enable tesorero
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
)

func main() {
	username := flag.String("username", "admin", "admin username")
	name := flag.String("name", "Administrador", "admin display name")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin password (or SEED_ADMIN_PASSWORD)")
	nurses := flag.String("nurses", "", "comma separated nurse names to create")
	disable := flag.String("disable", "", "username to disable; ends its sessions")
	enable := flag.String("enable", "", "username to enable again")
	flag.Parse()

	toggle := strings.TrimSpace(*disable) != "" || strings.TrimSpace(*enable) != ""
	if !toggle && strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "-password (or SEED_ADMIN_PASSWORD) is required")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	// sessions, caches and the closing lock live in the server's Redis
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
		defer config.GetRedisDB().Close()
	}
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.Migrate(config.GetDB()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	if toggle {
		for _, change := range []struct {
			username string
			active   bool
		}{{*disable, false}, {*enable, true}} {
			if strings.TrimSpace(change.username) == "" {
				continue
			}
			user, err := models.SetUserActive(ctx, change.username, change.active)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to update user %q: %v\n", change.username, err)
				os.Exit(1)
			}
			fmt.Printf("user %q active=%t\n", user.Username, change.active)
		}
		return
	}

	admin, err := models.GetUserByUsername(ctx, *username)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		admin, err = models.CreateUser(ctx, &models.NewUser{
			Username: *username,
			Name:     *name,
			Password: *password,
			Role:     models.UserRoleAdmin,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %q (id=%d)\n", admin.Username, admin.ID)
	} else {
		fmt.Printf("admin user %q already exists (id=%d)\n", admin.Username, admin.ID)
		// the cached copy may predate manual edits to the row
		if err := admin.RemoveInstanceRedis(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to clear user cache: %v\n", err)
		}
	}

	actor := admin.Actor("seed-admin")
	for _, nurseName := range strings.Split(*nurses, ",") {
		nurseName = strings.TrimSpace(nurseName)
		if nurseName == "" {
			continue
		}
		nurse, err := models.CreateNurse(ctx, actor, &models.NewNurse{Name: nurseName})
		if err != nil {
			var appErr *utils.AppError
			if errors.As(err, &appErr) && appErr.Code == utils.CodeValidation {
				fmt.Printf("skipping nurse %q: %s\n", nurseName, appErr.Message)
				continue
			}
			fmt.Fprintf(os.Stderr, "failed to create nurse %q: %v\n", nurseName, err)
			os.Exit(1)
		}
		fmt.Printf("created nurse %q (id=%d)\n", nurse.Name, nurse.ID)
	}
}

// Command initd is the init service (component C9, spec §2): runs
// schema migrations with the privileged database role and declares bus
// topology, then exits. Every other component's Kubernetes/Compose
// manifest depends_on this one completing successfully — "gates all
// other services".
package main

import (
	"errors"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/gamenight/scheduler/internal/bus"
	"github.com/gamenight/scheduler/internal/config"
)

func main() {
	cfg := config.Load()

	log.Println("initd: running schema migrations")
	m, err := migrate.New("file://internal/store/migrations", cfg.DatabaseMigratorURL())
	if err != nil {
		log.Fatalf("initd: failed to open migrator: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("initd: migration failed: %v", err)
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		log.Printf("initd: migration source close error: %v", srcErr)
	}
	if dbErr != nil {
		log.Printf("initd: migration db close error: %v", dbErr)
	}
	log.Println("initd: migrations complete")

	log.Println("initd: declaring bus topology")
	client, err := bus.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("initd: failed to connect to broker: %v", err)
	}
	defer client.Close()

	if err := client.DeclareTopology(bus.Declarations()); err != nil {
		log.Fatalf("initd: failed to declare topology: %v", err)
	}
	log.Println("initd: topology declared, init complete")
}

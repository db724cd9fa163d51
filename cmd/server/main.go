package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"kvserver/internal/server"
)

func main() {
	port := flag.Int("port", 6379, "port to listen on")
	portAlias := flag.Int("p", 0, "alias for -port")
	replicaOf := flag.String("replicaof", "", "\"host port\" of the primary to replicate from")
	dir := flag.String("dir", ".", "directory holding the snapshot file")
	dbFilename := flag.String("dbfilename", "dump.rdb", "snapshot filename within -dir")
	flag.Parse()

	cfg := server.DefaultConfig()
	cfg.Port = *port
	if *portAlias != 0 {
		cfg.Port = *portAlias
	}
	cfg.Dir = *dir
	cfg.DBFilename = *dbFilename

	if *replicaOf != "" {
		parts := strings.Fields(*replicaOf)
		if len(parts) != 2 {
			log.Fatalf("-replicaof expects \"host port\", got %q", *replicaOf)
		}
		masterPort, err := strconv.Atoi(parts[1])
		if err != nil {
			log.Fatalf("-replicaof port %q is not a number", parts[1])
		}
		cfg.ReplicaOfHost = parts[0]
		cfg.ReplicaOfPort = masterPort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.New(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down")
		cancel()
		srv.Shutdown()
	}()

	log.Printf("starting server on %s:%d", cfg.Host, cfg.Port)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

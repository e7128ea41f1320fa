package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gregoryshoniwa/voice-agent/app/server"
	"github.com/gregoryshoniwa/voice-agent/config"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
}

func main() {
	s := server.New(config.Load())

	go func() {
		if err := s.Run(); err != nil {
			log.Fatal("server error: ", err)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down server...")
	s.Stop()
}

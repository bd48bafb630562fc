package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/MohiuddinKhanTushar/merge-point-software/db/migrations"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/api"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/config"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	if err := migrations.Up(cfg.PostgresURL); err != nil {
		log.Fatal(err)
	}
	h := api.NewServer(cfg)
	log.Printf("mergepoint api listening on %s llm_providers=%q embed_providers=%q", cfg.APIAddr, cfg.LLMProviders, cfg.EmbedProviders)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}

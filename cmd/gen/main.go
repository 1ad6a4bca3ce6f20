package main

import (
	"StaffOps/config"
	"StaffOps/internal/repository"
	"StaffOps/pkg/logger"
)

func main() {
	config.MustLoad()
	logger.Init()
	defer logger.Sync()

	repository.RunGenerate()
}

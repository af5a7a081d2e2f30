package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/localnerve/vaxtrack/internal/config"
	"github.com/localnerve/vaxtrack/internal/testutil"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var withRedis bool
	flag.BoolVar(&withRedis, "redis", true, "also start redis for cross-instance session events")
	flag.Parse()

	usage := `
Run the vaxtrack development containers (postgres, optionally redis) with the
environment variables from the .env file. The connection settings for the
server are printed once the containers are up.

Usage:

testcontainers [-h] [-redis=false] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := config.LoadEnvFile(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGQUIT)

	ready := make(chan *testutil.TestContainers, 1)
	go func() {
		tc, err := testutil.CreateTestContainers(nil, testutil.Options{Redis: withRedis})
		if err != nil {
			log.Fatalf("Failed to create test containers: %v\n", err)
		}
		printEnv(tc.Config)
		ready <- tc
	}()

	var testContainers *testutil.TestContainers
	select {
	case testContainers = <-ready:
		sig := <-sigs
		log.Printf("\nReceived signal: %v, terminating test containers...\n", sig)
	case sig := <-sigs:
		log.Printf("\nReceived signal: %v before containers were ready\n", sig)
	}
	if testContainers != nil {
		testContainers.Terminate(nil)
	}
}

// printEnv writes the settings a local server needs, in .env format
func printEnv(cfg *config.Config) {
	fmt.Printf("DB_TYPE=%s\n", cfg.DBType)
	fmt.Printf("DB_HOST=%s\n", cfg.DBHost)
	fmt.Printf("DB_PORT=%s\n", cfg.DBPort)
	fmt.Printf("DB_DATABASE=%s\n", cfg.DBDatabase)
	fmt.Printf("DB_APP_USER=%s\n", cfg.DBAppUser)
	fmt.Printf("DB_APP_PASSWORD=%s\n", cfg.DBAppPassword)
	fmt.Printf("DB_USER=%s\n", cfg.DBUser)
	fmt.Printf("DB_PASSWORD=%s\n", cfg.DBPassword)
	if cfg.RedisURL != "" {
		fmt.Printf("REDIS_URL=%s\n", cfg.RedisURL)
	}
}

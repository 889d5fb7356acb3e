package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/kubev2v/workmanager/pkg/client"
)

type configuration struct {
	WorkdURL    string
	IOQueue     string
	IOCategory  string
	WaitTimeout time.Duration
}

var (
	cfg       configuration
	workd     *client.Client
	runPrefix string
)

func (c configuration) Validate() error {
	u, err := url.Parse(c.WorkdURL)
	if err != nil {
		return fmt.Errorf("failed to parse workd url: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("workd url needs a scheme and a host")
	}
	if c.WaitTimeout <= 0 {
		return errors.New("wait timeout must be positive")
	}
	return nil
}

func main() {
	flag.StringVar(&cfg.WorkdURL, "workd-url", "http://localhost:8000", "URL of the workd daemon under test")
	flag.StringVar(&cfg.IOQueue, "io-queue", "io", "a configured queue other than default")
	flag.StringVar(&cfg.IOCategory, "io-category", "copy", "a category mapped to io-queue")
	flag.DurationVar(&cfg.WaitTimeout, "wait-timeout", 30*time.Second, "timeout of await calls")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("failed to validate configuration: %v", err)
	}

	workd, err = client.NewClient(cfg.WorkdURL)
	if err != nil {
		log.Fatalf("failed to create workd client: %v", err)
	}
	// ids stay unique across runs against the same daemon
	runPrefix = fmt.Sprintf("e2e-%d-", time.Now().UnixNano())

	RegisterFailHandler(Fail)
	if !RunSpecs(&testing.T{}, "E2E Suite") {
		os.Exit(1)
	}
}

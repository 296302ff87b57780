package main

import (
	"os"
	"testing"

	"github.com/okian/matchpool/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

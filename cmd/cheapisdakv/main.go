// Command cheapisdakv runs the RESP-compatible key-value server.
// Pass a directory as the sole positional argument to run against the
// disk-resident backend; with no argument the server runs entirely
// in memory.
package main

import (
	"flag"
	"fmt"
	"os"

	"cheapisdakv/disk"
	"cheapisdakv/executor"
	"cheapisdakv/server"
	"cheapisdakv/util/file"
	"cheapisdakv/util/log"

	"github.com/sirupsen/logrus"
)

func main() {
	addr := flag.String("addr", "0.0.0.0", "address to bind")
	port := flag.Int("port", 6379, "port to listen on")
	backlog := flag.Int("backlog", 511, "listen backlog")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	exec, err := newExecutor(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer exec.Close()

	cfg := server.Config{Addr: *addr, Port: *port, Backlog: *backlog}
	s, err := server.New(cfg, exec)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logrus.Infof("cheapis-dakv listening on %s:%d", *addr, *port)
	if err := s.Run(); err != nil {
		log.FnErrLog("server exited: %v", err)
		os.Exit(1)
	}
}

func newExecutor(dir string) (executor.Executor, error) {
	if dir == "" {
		return executor.NewMemory(), nil
	}
	if err := file.EnsureDir(dir, false); err != nil {
		return nil, err
	}
	return disk.Open(dir)
}

// Command lwm2mctl is a thin demonstration CLI wiring a session and a
// handful of op calls together against a configured daemon address.
// Grounded on the teacher's main.go: flag parsing, log/slog setup, and
// os/signal graceful shutdown, adapted from an HTTP server's
// ListenAndServe loop to a one-shot connect/perform/disconnect run.
//
// CoAP/DTLS transport and the LwM2M registration/bootstrap state
// machine are external collaborators (spec §1); this command only
// demonstrates wiring a session and performing operations against
// whatever IPC peer is configured.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/op"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

func main() {
	address := flag.String("a", fmt.Sprintf("%s:%d", session.DefaultAddress, session.DefaultPort), "daemon IPC address (host:port)")
	manifestFlag := flag.String("m", "", "JSON definition manifest to load before performing the Get")
	getPath := flag.String("get", "/3/0/0", "path to read once connected")
	timeoutFlag := flag.Duration("t", 5*time.Second, "perform timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	p, err := path.Parse(*getPath)
	if err != nil {
		log.Fatalf("invalid -get path %q: %v", *getPath, err)
	}

	sess := session.New(session.KindClient)
	sess.SetLogger(logger)

	if *manifestFlag != "" {
		f, err := os.Open(*manifestFlag)
		if err != nil {
			log.Fatalf("opening manifest: %v", err)
		}
		err = model.LoadDefinitionManifest(f, sess.Registry())
		f.Close()
		if err != nil {
			log.Fatalf("loading manifest: %v", err)
		}
		logger.Info("loaded definition manifest", "file", *manifestFlag)
	}

	if err := sess.SetIPCUDP(*address); err != nil {
		log.Fatalf("configuring IPC: %v", err)
	}
	if err := sess.SetDefaultTimeout(*timeoutFlag); err != nil {
		log.Fatalf("configuring timeout: %v", err)
	}

	// Session is single-threaded by contract (session/session.go), so the
	// signal handler does not touch it directly; it only short-circuits
	// the process, leaving cleanup to the OS.
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctrlc:
			logger.Info("interrupted")
			os.Exit(130)
		case <-done:
		}
	}()
	defer close(done)

	logger.Info("connecting", "address", *address)
	if err := sess.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer func() {
		if err := sess.Disconnect(); err != nil {
			logger.Warn("disconnect", "err", err)
		}
	}()

	get := op.NewGet(sess)
	defer get.Free()
	if err := get.AddGet(p); err != nil {
		log.Fatalf("adding get path: %v", err)
	}

	if err := get.Perform(0); err != nil && !errors.Is(err, errs.ErrResponse) {
		log.Fatalf("perform: %v", err)
	}

	resp, err := get.GetResponse()
	if err != nil {
		log.Fatalf("get response: %v", err)
	}
	for _, rp := range resp.Paths() {
		pr, _ := resp.GetPathResult(rp)
		if !pr.Success() {
			logger.Warn("path result", "path", rp.String(), "error", pr.Result.Error)
			continue
		}
		logger.Info("path result", "path", rp.String(), "value", fmt.Sprint(pr.Value))
	}
}

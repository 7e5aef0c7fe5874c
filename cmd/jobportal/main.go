// Command jobportal is a terminal client for the job portal backend. It drives
// the same application store a browser front end would: sessions, job listings,
// applications, bookmarks, the applicant profile and HR candidate review.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}, os.Args[1:])
	stop()
	os.Exit(code) //nolint:forbidigo // CLI must propagate command failure to the shell
}

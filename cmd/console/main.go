// Command console stands in for a game server plugin: it attaches to the
// matchadmin bridge, turns stdin lines into host events and prints every
// command the core sends back.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/NicolasHaas/matchadmin/pkg/client"
	"github.com/NicolasHaas/matchadmin/pkg/logging"
	pb "github.com/NicolasHaas/matchadmin/pkg/protocol/pb"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	addr := flag.String("addr", "127.0.0.1:27110", "Bridge address")
	secret := flag.String("secret", os.Getenv("MATCHADMIN_BRIDGE_SECRET"), "Bridge secret")
	name := flag.String("name", "console host", "Server name sent in the hello")
	mapName := flag.String("map", "de_mirage", "Map reported in the hello")
	insecure := flag.Bool("insecure", false, "Connect over plain TCP")
	logLevel := flag.String("log-level", "warn", "Log level: "+logging.LevelNames())
	flag.Parse()

	_ = logging.Setup(logging.Options{Level: *logLevel, Output: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, *addr, *insecure)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	welcome, err := c.Hello(*secret, *name, *mapName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("attached as %s (core %s)\n", welcome.Session, welcome.Version)
	fmt.Println("type 'help' for the event syntax")

	c.SetCommandHandler(func(msg *pb.Envelope) {
		fmt.Println("<", client.FormatCommand(msg))
	})
	c.StartReceiving()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-c.Done():
			fmt.Println("connection closed")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "help" {
				fmt.Println(client.Usage)
				continue
			}
			msg, err := client.ParseLine(line)
			if errors.Is(err, client.ErrEmptyLine) {
				continue
			}
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			if err := c.Send(msg); err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
				return
			}
		}
	}
}

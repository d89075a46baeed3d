package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/robertkrimen/isatty"
	"github.com/spf13/cobra"
	roomdb "github.com/vilterp/roomdb/pkg"
)

func main() {
	var url string
	cmd := &cobra.Command{
		Use:          "roomdb-shell",
		Short:        "Interactive shell for a roomdb server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(url)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:9000/ws", "URL of roomdb server to connect to")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(url string) error {
	// connect to server
	client, err := roomdb.NewClient(url)
	if err != nil {
		return fmt.Errorf("couldn't connect: %v", err)
	}
	defer client.Close()

	// Wait for server closing
	go waitForServerClose(client)

	// check if is TTY
	isInputTty := isatty.Check(os.Stdin.Fd())

	if isInputTty {
		fmt.Println("roomdb shell")
		fmt.Println("\\h for help")
	}

	// initialize readline
	prompt := ""
	if isInputTty {
		prompt = fmt.Sprintf("%s> ", url)
	}
	l, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       "/tmp/.roomdb-history",
		InterruptPrompt:   "^C",
		EOFPrompt:         "bye!",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	for {
		line, readlineErr := l.Readline()
		if readlineErr != nil {
			fmt.Println("bye!")
			return nil
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case `\h`:
			printHelp()
			continue
		case `\f`:
			runStatement(client, "FACTS")
			continue
		}

		if strings.HasPrefix(strings.ToUpper(line), "WHEN") {
			runLiveQuery(client, line)
		} else {
			runStatement(client, line)
		}
	}
}

func printHelp() {
	fmt.Println(`\h	help`)
	fmt.Println(`\f	list facts`)
	fmt.Println(`CLAIM <fact>`)
	fmt.Println(`RETRACT <pattern>`)
	fmt.Println(`SELECT <pattern> [; <pattern>]...`)
	fmt.Println(`WHEN <pattern> [; <pattern>]...	(updates print as they arrive)`)
	fmt.Println(`EVALUATE`)
}

func waitForServerClose(client *roomdb.Client) {
	<-client.ServerClosed
	fmt.Println("server closed the connection")
	os.Exit(0)
}

func runLiveQuery(client *roomdb.Client, query string) {
	results, channel, err := client.LiveQuery(query)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	printJSON("init", results)
	go handleMessages(channel)
}

func runStatement(client *roomdb.Client, stmt string) {
	channel, err := client.Statement(stmt)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	firstUpdate, ok := <-channel.Updates
	if !ok {
		return
	}
	printMessage(channel, firstUpdate)
}

func handleMessages(channel *roomdb.ClientChannel) {
	for message := range channel.Updates {
		printMessage(channel, message)
	}
}

func printMessage(channel *roomdb.ClientChannel, msg *roomdb.MessageToClient) {
	fmt.Printf("chan %d: ", channel.StatementID)
	switch {
	case msg.AckMessage != nil:
		fmt.Println("ack", *msg.AckMessage)
	case msg.ErrorMessage != nil:
		fmt.Println("error", *msg.ErrorMessage)
	case msg.InitialResultMessage != nil && msg.InitialResultMessage.Facts != nil:
		fmt.Println()
		for _, f := range msg.InitialResultMessage.Facts {
			fmt.Println(f)
		}
	case msg.InitialResultMessage != nil:
		printJSON("init", msg.InitialResultMessage.Results)
	case msg.SubscriptionUpdateMessage != nil:
		printJSON("update", msg.SubscriptionUpdateMessage.Results)
	}
}

func printJSON(tag string, thing interface{}) {
	indented, _ := json.MarshalIndent(thing, "", "  ")
	fmt.Printf("%s:\n%s\n", tag, indented)
}

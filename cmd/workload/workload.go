package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	roomdb "github.com/vilterp/roomdb/pkg"
	clog "github.com/vilterp/roomdb/pkg/log"
)

var colors = []string{"red", "green", "blue", "yellow"}

func main() {
	var (
		url            string
		numLiveQueries int
		numThings      int
		numRounds      int
	)
	cmd := &cobra.Command{
		Use:          "roomdb-workload",
		Short:        "Claims and retracts facts against a roomdb server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(url, numLiveQueries, numThings, numRounds)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:9000/ws", "url of roomdb server to connect to")
	cmd.Flags().IntVar(&numLiveQueries, "numLiveQueries", 5, "number of WHENs to open")
	cmd.Flags().IntVar(&numThings, "numThings", 50, "number of distinct things to claim colors for")
	cmd.Flags().IntVar(&numRounds, "numRounds", 100000, "number of claim/retract rounds")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(url string, numLiveQueries, numThings, numRounds int) error {
	if err := clog.Init(true, "info"); err != nil {
		return err
	}
	defer clog.Sync()
	logger := clog.L()

	client, err := roomdb.NewClient(url)
	if err != nil {
		return err
	}
	defer client.Close()

	// Open live queries.
	logger.Info("opening live queries")
	for i := 0; i < numLiveQueries; i++ {
		_, channel, err := client.LiveQuery("WHEN #workload $thing is $color; #workload $thing is near $other")
		if err != nil {
			return err
		}
		go func() {
			for range channel.Updates {
			}
		}()
	}

	// Claim things near each other.
	logger.Info("claiming neighbors")
	for i := 0; i < numThings; i++ {
		stmt := fmt.Sprintf("CLAIM #workload thing-%d is near thing-%d", i, rand.Intn(numThings))
		if _, err := client.Exec(stmt); err != nil {
			return err
		}
	}

	// Recolor things, evaluating as the driver would once per frame.
	logger.Info("recoloring")
	for round := 0; round < numRounds; round++ {
		thing := rand.Intn(numThings)
		if _, err := client.Exec(fmt.Sprintf("RETRACT #workload thing-%d is $", thing)); err != nil {
			return err
		}
		color := colors[rand.Intn(len(colors))]
		if _, err := client.Exec(fmt.Sprintf("CLAIM #workload thing-%d is %s", thing, color)); err != nil {
			return err
		}
		if round%10 == 0 {
			if _, err := client.Exec("EVALUATE"); err != nil {
				return err
			}
		}
		if round%500 == 0 {
			logger.Infow("progress", "round", round)
		}
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/permashift/internal/timeshift"
	"github.com/goodtune/permashift/internal/vdr"
)

var (
	checkStart         int
	checkHours         int
	checkPriority      int
	checkLifetime      int
	checkPausePriority int
	checkPauseLifetime int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check timeshift decisions interactively",
	Long:  `Check what the timeshift controller would decide for a timer, without talking to VDR.`,
}

var checkStopTimeCmd = &cobra.Command{
	Use:   "stoptime",
	Short: "Compute a session timer's stop time",
	Long:  `Compute the stop time an adopted timer would get, from its packed start time and the session length.`,
	Example: `  permashift check stoptime --start 2330 --hours 2
  permashift check stoptime --start 0815 --hours 23`,
	RunE: runCheckStopTime,
}

var checkOwnershipCmd = &cobra.Command{
	Use:   "ownership",
	Short: "Check the interference guard's verdict for a timer",
	Long:  `Check whether a timer with the given priority and lifetime would still be torn down as a disposable session timer, or relinquished as a kept recording.`,
	Example: `  permashift check ownership --priority -2 --lifetime 1
  permashift check ownership --priority 50 --lifetime 99 --pause-priority 10 --pause-lifetime 1`,
	RunE: runCheckOwnership,
}

func init() {
	checkStopTimeCmd.Flags().IntVar(&checkStart, "start", 0, "Packed start time, HHMM (required)")
	checkStopTimeCmd.Flags().IntVar(&checkHours, "hours", 3, "Session length in hours (1-23)")
	checkStopTimeCmd.MarkFlagRequired("start")

	checkOwnershipCmd.Flags().IntVar(&checkPriority, "priority", timeshift.SessionPriority, "Timer priority")
	checkOwnershipCmd.Flags().IntVar(&checkLifetime, "lifetime", 0, "Timer lifetime")
	checkOwnershipCmd.Flags().IntVar(&checkPausePriority, "pause-priority", timeshift.DefaultPausePriority, "Pause priority threshold")
	checkOwnershipCmd.Flags().IntVar(&checkPauseLifetime, "pause-lifetime", timeshift.DefaultPauseLifetime, "Pause lifetime threshold")

	// Add subcommands
	checkCmd.AddCommand(checkStopTimeCmd)
	checkCmd.AddCommand(checkOwnershipCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckStopTime(cmd *cobra.Command, args []string) error {
	start := vdr.PackedTime(checkStart)
	if !start.Valid() {
		return fmt.Errorf("invalid packed start time: %04d", checkStart)
	}
	if checkHours < 1 || checkHours > 23 {
		return fmt.Errorf("hours must be between 1 and 23, got %d", checkHours)
	}

	stop := timeshift.ComputeStopTime(start, checkHours)

	fmt.Printf("Start:  %s\n", start)
	fmt.Printf("Length: %dh\n", checkHours)
	if stop < start {
		fmt.Printf("Stop:   %s %s\n", color.CyanString(stop.String()), color.YellowString("(next day)"))
	} else {
		fmt.Printf("Stop:   %s\n", color.CyanString(stop.String()))
	}
	return nil
}

func runCheckOwnership(cmd *cobra.Command, args []string) error {
	t := &vdr.Timer{
		ID:       1,
		Priority: checkPriority,
		Lifetime: checkLifetime,
	}
	threshold := timeshift.PauseThreshold{
		Priority: checkPausePriority,
		Lifetime: checkPauseLifetime,
	}

	verdict := timeshift.CheckOwnership(t.ID, t, []vdr.TimerID{t.ID}, threshold)

	fmt.Printf("Timer:     priority=%d lifetime=%d\n", checkPriority, checkLifetime)
	fmt.Printf("Threshold: priority=%d lifetime=%d\n", checkPausePriority, checkPauseLifetime)
	switch verdict {
	case timeshift.Owned:
		color.Green("Verdict:   owned - timer and recording are torn down at session end")
	case timeshift.Promoted:
		color.Yellow("Verdict:   promoted - timer is relinquished, the recording is kept")
	default:
		color.Red("Verdict:   %s", verdict)
	}
	return nil
}

// Command reelcore-log inspects a project file: its header, tracks and
// full command history, rendered from the replayed log.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"reelcore/internal/core"
	"reelcore/internal/osutil"
	"reelcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	var (
		userName = flag.String("user", "", "user name to open the project as (default: OS user)")
		history  = flag.Bool("history", false, "print the full command history")
		tracks   = flag.Bool("tracks", true, "print the track list")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <project-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		exitFunc(2)
		return
	}
	if err := run(flag.Arg(0), *userName, *history, *tracks, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "reelcore-log: %v\n", err)
		exitFunc(1)
	}
}

func run(path, userName string, history, tracks, verbose bool) error {
	if userName == "" {
		userName = osutil.UserName()
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := core.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	project, err := core.Open(path, domain.User{Name: userName}, core.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = project.Close() }()

	fmt.Printf("project %s\n", project.ID())
	fmt.Printf("  revision:       %d\n", project.Revision())
	fmt.Printf("  sample rate:    %d\n", project.SampleRate())
	layout := project.ChannelLayout()
	fmt.Printf("  channel layout: %s (%d channels)\n", layout.Name, len(layout.Channels))
	fmt.Printf("  users:          %d\n", len(project.UserList()))
	fmt.Printf("  audio assets:   %d\n", len(project.AudioAssetList()))

	if tracks {
		fmt.Println("tracks:")
		for i, track := range project.TrackList() {
			fmt.Printf("  %2d. %s (%d segments)\n", i+1, track.Name, len(project.TrackSegments(track.ID)))
		}
	}
	if history {
		fmt.Println("history:")
		users := make(map[domain.ID]string, len(project.UserList()))
		for _, u := range project.UserList() {
			users[u.ID] = u.Name
		}
		for _, cmd := range project.CommandList() {
			fmt.Printf("  %6d  %-20s %-16s %s\n",
				cmd.Revision(), cmd.Type(), users[cmd.UserID()], cmd.Description())
		}
	}
	return nil
}

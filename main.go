// Package main provides the entry point for the venue2spotify application.
//
// venue2spotify scrapes a concert venue's page for upcoming artists and adds
// their top Spotify tracks to a playlist, from the command line or through a
// small web application.
package main

import cmd "github.com/toozej/venue2spotify/cmd/venue2spotify"

// main is the entry point of the venue2spotify application.
// It delegates execution to the cmd package which handles all
// command-line interface functionality.
func main() {
	cmd.Execute()
}

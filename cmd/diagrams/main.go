// Package main renders the venue2spotify architecture diagrams as Graphviz
// dot files under docs/diagrams/go-diagrams.
package main

import (
	"log"
	"os"

	"github.com/blushft/go-diagrams/diagram"
	"github.com/blushft/go-diagrams/nodes/gcp"
	"github.com/blushft/go-diagrams/nodes/generic"
	"github.com/blushft/go-diagrams/nodes/programming"
)

func main() {
	if err := os.MkdirAll("docs/diagrams", 0o750); err != nil {
		log.Fatal(err)
	}
	if err := os.Chdir("docs/diagrams"); err != nil {
		log.Fatal(err)
	}

	generateArchitectureDiagram()
	generateComponentDiagram()
}

// generateArchitectureDiagram draws how a sync flows from the venue page to the playlist
func generateArchitectureDiagram() {
	d, err := diagram.New(diagram.Filename("architecture"), diagram.Label("venue2spotify Architecture"), diagram.Direction("LR"))
	if err != nil {
		log.Fatal(err)
	}

	user := generic.Blank.Blank(diagram.NodeLabel("User"))
	venuePage := generic.Blank.Blank(diagram.NodeLabel("Venue Web Page"))
	cli := programming.Language.Go(diagram.NodeLabel("venue2spotify CLI"))
	web := programming.Language.Go(diagram.NodeLabel("Web Application"))
	spotifyAPI := generic.Blank.Blank(diagram.NodeLabel("Spotify Web API"))
	sessions := gcp.Database.Sql(diagram.NodeLabel("Session Store (SQLite)"))
	token := generic.Blank.Blank(diagram.NodeLabel("Token File"))

	d.Connect(user, cli, diagram.Forward())
	d.Connect(user, web, diagram.Forward())
	d.Connect(cli, venuePage, diagram.Forward())
	d.Connect(web, venuePage, diagram.Forward())
	d.Connect(cli, spotifyAPI, diagram.Forward())
	d.Connect(web, spotifyAPI, diagram.Forward())
	d.Connect(cli, token, diagram.Bidirectional())
	d.Connect(web, sessions, diagram.Bidirectional())

	if err := d.Render(); err != nil {
		log.Fatal(err)
	}
}

// generateComponentDiagram draws the internal packages and their dependencies
func generateComponentDiagram() {
	d, err := diagram.New(diagram.Filename("components"), diagram.Label("venue2spotify Components"), diagram.Direction("TB"))
	if err != nil {
		log.Fatal(err)
	}

	cmd := programming.Language.Go(diagram.NodeLabel("cmd/venue2spotify"))
	web := programming.Language.Go(diagram.NodeLabel("internal/web"))
	session := programming.Language.Go(diagram.NodeLabel("internal/session"))
	pipeline := programming.Language.Go(diagram.NodeLabel("internal/pipeline"))
	venue := programming.Language.Go(diagram.NodeLabel("internal/venue"))
	resolve := programming.Language.Go(diagram.NodeLabel("internal/resolve"))
	playlist := programming.Language.Go(diagram.NodeLabel("internal/playlist"))
	duplicate := programming.Language.Go(diagram.NodeLabel("internal/duplicate"))
	spotify := programming.Language.Go(diagram.NodeLabel("internal/spotify"))
	report := programming.Language.Go(diagram.NodeLabel("internal/report"))
	config := programming.Language.Go(diagram.NodeLabel("pkg/config"))

	core := diagram.NewGroup("core").Label("Sync Pipeline").Add(pipeline, venue, resolve, playlist, duplicate)

	d.Connect(cmd, pipeline, diagram.Forward())
	d.Connect(cmd, report, diagram.Forward())
	d.Connect(cmd, web, diagram.Forward())
	d.Connect(cmd, spotify, diagram.Forward())
	d.Connect(cmd, config, diagram.Forward())
	d.Connect(web, session, diagram.Forward())
	d.Connect(web, pipeline, diagram.Forward())
	d.Connect(pipeline, venue, diagram.Forward())
	d.Connect(pipeline, resolve, diagram.Forward())
	d.Connect(pipeline, playlist, diagram.Forward())
	d.Connect(playlist, duplicate, diagram.Forward())
	d.Connect(resolve, spotify, diagram.Forward())
	d.Connect(playlist, spotify, diagram.Forward())
	d.Group(core)

	if err := d.Render(); err != nil {
		log.Fatal(err)
	}
}

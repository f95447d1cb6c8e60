package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	apiclient "github.com/splax/launchpad/pkg/api/client"
	"github.com/splax/launchpad/pkg/config"
)

var buildVersion = "dev"

// Global carries the API client shared by every subcommand.
type Global struct {
	Client *apiclient.Client
}

// CLI defines the launchpad command line.
type CLI struct {
	API           string           `name:"api" env:"LAUNCHPAD_API" default:"http://localhost:9000" help:"API base URL"`
	ChannelPrefix string           `name:"channel-prefix" env:"LOG_CHANNEL_PREFIX" default:"logs:" help:"Live log channel prefix"`
	Version       kong.VersionFlag `name:"version" help:"Show version and exit"`

	Project ProjectCmd `cmd:"" help:"Manage projects"`
	Deploy  DeployCmd  `cmd:"" help:"Start a deployment of a project"`
	Status  StatusCmd  `cmd:"" help:"Show the status of a deployment"`
	Logs    LogsCmd    `cmd:"" help:"Print the stored logs of a deployment"`
	Tail    TailCmd    `cmd:"" help:"Stream live logs of a deployment"`
}

// ProjectCmd groups project subcommands.
type ProjectCmd struct {
	Create ProjectCreateCmd `cmd:"" help:"Register a repository as a project"`
}

// ProjectCreateCmd implements 'project create'.
type ProjectCreateCmd struct {
	Name      string `required:"" help:"Display name"`
	GitURL    string `name:"git-url" required:"" help:"Repository URL"`
	Subdomain string `help:"Requested subdomain; generated when omitted"`
}

func (p *ProjectCreateCmd) Run(ctx context.Context, g *Global) error {
	project, err := g.Client.CreateProject(ctx, apiclient.CreateProjectInput{
		Name:      p.Name,
		GitURL:    p.GitURL,
		Subdomain: p.Subdomain,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Project created: %s\n", project.ID)
	fmt.Printf("  name:      %s\n", project.Name)
	fmt.Printf("  subdomain: %s\n", project.Subdomain)
	if project.URL != "" {
		fmt.Printf("  url:       %s\n", project.URL)
	}
	return nil
}

// DeployCmd implements 'deploy'.
type DeployCmd struct {
	ProjectID string `arg:"" name:"project-id" help:"Project to deploy"`
	Follow    bool   `short:"f" help:"Stream live logs after queueing"`
}

func (d *DeployCmd) Run(ctx context.Context, g *Global) error {
	deploymentID, status, err := g.Client.StartDeployment(ctx, d.ProjectID)
	if err != nil {
		return err
	}
	fmt.Printf("Deployment %s %s\n", deploymentID, status)
	if !d.Follow {
		return nil
	}
	return tail(ctx, g.Client, deploymentID)
}

// StatusCmd implements 'status'.
type StatusCmd struct {
	DeploymentID string `arg:"" name:"deployment-id" help:"Deployment to inspect"`
}

func (s *StatusCmd) Run(ctx context.Context, g *Global) error {
	deployment, err := g.Client.GetDeployment(ctx, s.DeploymentID)
	if err != nil {
		return err
	}
	fmt.Printf("Deployment %s %s\n", deployment.ID, deployment.Status)
	fmt.Printf("  project: %s\n", deployment.ProjectID)
	fmt.Printf("  updated: %s\n", deployment.UpdatedAt.Local().Format(time.DateTime))
	return nil
}

// LogsCmd implements 'logs'.
type LogsCmd struct {
	DeploymentID string `arg:"" name:"deployment-id" help:"Deployment whose logs to print"`
}

func (l *LogsCmd) Run(ctx context.Context, g *Global) error {
	events, err := g.Client.GetLogs(ctx, l.DeploymentID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Printf("%s  %s\n", ev.Timestamp.Local().Format(time.TimeOnly), ev.Log)
	}
	return nil
}

// TailCmd implements 'tail'.
type TailCmd struct {
	DeploymentID string `arg:"" name:"deployment-id" help:"Deployment to follow"`
}

func (t *TailCmd) Run(ctx context.Context, g *Global) error {
	return tail(ctx, g.Client, t.DeploymentID)
}

func tail(ctx context.Context, c *apiclient.Client, deploymentID string) error {
	fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)\n", deploymentID)
	return c.Tail(ctx, deploymentID, func(line string) {
		fmt.Println(line)
	})
}

func main() {
	_ = config.LoadDotenv()
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("launchpad"),
		kong.Description("Register projects, trigger deployments and follow their logs."),
		kong.Vars{"version": buildVersion},
		kong.UsageOnError(),
	)

	c, err := apiclient.New(cli.API, apiclient.WithChannelPrefix(cli.ChannelPrefix))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&Global{Client: c}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

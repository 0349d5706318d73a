package cmd

import (
	"github.com/huangsam/pra/core"
	"github.com/spf13/cobra"
)

// jenkinsCmd groups the Jenkins commands.
var jenkinsCmd = &cobra.Command{
	Use:   "jenkins",
	Short: "Collect build and test history from Jenkins",
}

// jenkinsFetchCmd writes builds and tests staging tables.
var jenkinsFetchCmd = &cobra.Command{
	Use:   "fetch <projects-file>",
	Short: "Write builds and tests staging tables per matching job",
	Long: `Resolve each project of the projects file to the Jenkins jobs whose name
contains it, then fetch the builds and test reports of every job once.

Each job produces <output-dir>/jenkins_builds/<job>_staging.csv and, when any
build carries test results, <output-dir>/jenkins_tests/<job>_staging.csv.
Folder jobs and jobs with unsupported SCMs are skipped.

Examples:
  # One project name per line, '#' starts a comment
  pra jenkins fetch projects.txt

  # Authenticate with a user and an API token
  PRA_JENKINS_TOKEN=... pra jenkins fetch projects.txt --user ci-bot`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteJenkinsFetch(rootCtx, cfg, storeManager)
	},
}

package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

var (
	dlqOffset int64
	dlqLimit  int64
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Inspect and control the scheduler",
}

var schedulerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active policy and queue depths",
	RunE:  runSchedulerStatus,
}

var schedulerPolicyCmd = &cobra.Command{
	Use:   "policy [name]",
	Short: "Get or set the scheduling policy",
	Long:  `Without arguments, prints the active policy. With a name (fcfs, sjf, priority, round_robin), switches to it; queued jobs carry over.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchedulerPolicy,
}

var schedulerDLQCmd = &cobra.Command{
	Use:   "dead-letter",
	Short: "List dead-lettered jobs",
	RunE:  runSchedulerDLQ,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
	schedulerCmd.AddCommand(schedulerPolicyCmd)
	schedulerCmd.AddCommand(schedulerDLQCmd)

	schedulerDLQCmd.Flags().Int64Var(&dlqOffset, "offset", 0, "pagination offset")
	schedulerDLQCmd.Flags().Int64Var(&dlqLimit, "limit", 20, "page size")
}

func runSchedulerStatus(cmd *cobra.Command, args []string) error {
	var status struct {
		Policy          string         `json:"policy"`
		ReadyQueueDepth int64          `json:"ready_queue_depth"`
		DeadLetterCount int64          `json:"dead_letter_count"`
		Jobs            map[string]int `json:"jobs"`
	}
	if err := doRequest("GET", "/scheduler/status", nil, &status); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(status)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Policy", status.Policy)
	table.Append("Ready queue depth", fmt.Sprintf("%d", status.ReadyQueueDepth))
	table.Append("Dead letters", fmt.Sprintf("%d", status.DeadLetterCount))
	for _, name := range []string{"PENDING", "SCHEDULED", "RUNNING", "COMPLETED", "FAILED", "RETRIED"} {
		if count, ok := status.Jobs[name]; ok {
			table.Append("Jobs "+name, fmt.Sprintf("%d", count))
		}
	}
	table.Render()
	return nil
}

func runSchedulerPolicy(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		var status struct {
			Policy string `json:"policy"`
		}
		if err := doRequest("GET", "/scheduler/status", nil, &status); err != nil {
			return err
		}
		fmt.Println(status.Policy)
		return nil
	}

	name := args[0]
	if err := models.ValidatePolicy(name); err != nil {
		return err
	}
	if err := doRequest("PUT", "/scheduler/policy", map[string]string{"policy": name}, nil); err != nil {
		return err
	}
	fmt.Printf("Scheduling policy set to %s\n", name)
	return nil
}

func runSchedulerDLQ(cmd *cobra.Command, args []string) error {
	path := fmt.Sprintf("/scheduler/dead-letter?offset=%d&limit=%d", dlqOffset, dlqLimit)

	var resp struct {
		Entries []struct {
			JobID      string `json:"job_id"`
			JobType    string `json:"job_type"`
			Name       string `json:"name"`
			Error      string `json:"error"`
			RetryCount int    `json:"retry_count"`
			FailedAt   string `json:"failed_at"`
		} `json:"entries"`
		Total int64 `json:"total"`
	}
	if err := doRequest("GET", path, nil, &resp); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(resp)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job ID", "Name", "Type", "Retries", "Failed At", "Error")
	for _, entry := range resp.Entries {
		table.Append(entry.JobID, entry.Name, entry.JobType,
			fmt.Sprintf("%d", entry.RetryCount), entry.FailedAt, entry.Error)
	}
	table.Render()
	fmt.Printf("\nTotal: %d\n", resp.Total)
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

var (
	// submit flags
	jobName     string
	jobType     string
	jobPriority int
	jobDuration float64
	jobRetries  int
	jobPayload  string
	submitCount int

	// list flags
	listStatus   string
	listType     string
	listPage     int
	listPageSize int

	// status flags
	followStatus bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage jobs",
	Long:  `Commands for submitting, listing, inspecting and canceling jobs.`,
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new job",
	Long:  `Submit one or more jobs to the scheduler. --payload takes a JSON object passed to the handler.`,
	RunE:  runJobsSubmit,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Long:  `List jobs, optionally filtered by status and type.`,
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get job status",
	Long:  `Retrieve a single job by ID. With --follow, polls until the job reaches a terminal state.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a job",
	Long:  `Cancel a job that has not started running yet.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status",
	RunE:  runJobsStats,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsStatsCmd)

	jobsSubmitCmd.Flags().StringVar(&jobName, "name", "", "job name (required)")
	jobsSubmitCmd.Flags().StringVar(&jobType, "type", "sleep", "job type (sleep, word_count, thumbnail)")
	jobsSubmitCmd.Flags().IntVar(&jobPriority, "priority", 0, "priority 1-10, 1 is most urgent (default 5)")
	jobsSubmitCmd.Flags().Float64Var(&jobDuration, "duration", 0, "estimated duration in seconds (default 1.0)")
	jobsSubmitCmd.Flags().IntVar(&jobRetries, "max-retries", -1, "maximum retries (default 3)")
	jobsSubmitCmd.Flags().StringVar(&jobPayload, "payload", "", "handler payload as a JSON object")
	jobsSubmitCmd.Flags().IntVar(&submitCount, "count", 1, "submit this many copies (load seeding)")
	jobsSubmitCmd.MarkFlagRequired("name")

	jobsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (PENDING, SCHEDULED, ...)")
	jobsListCmd.Flags().StringVar(&listType, "type", "", "filter by job type")
	jobsListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	jobsListCmd.Flags().IntVar(&listPageSize, "page-size", 20, "jobs per page (max 100)")

	jobsStatusCmd.Flags().BoolVar(&followStatus, "follow", false, "poll job status every 2 seconds until terminal")
}

func buildRequest(index int) (*models.JobRequest, error) {
	name := jobName
	if submitCount > 1 {
		name = fmt.Sprintf("%s-%d", jobName, index+1)
	}

	req := &models.JobRequest{
		Name:              name,
		JobType:           models.JobType(jobType),
		Priority:          jobPriority,
		EstimatedDuration: jobDuration,
	}
	if jobRetries >= 0 {
		req.MaxRetries = &jobRetries
	}
	if jobPayload != "" {
		if err := json.Unmarshal([]byte(jobPayload), &req.Payload); err != nil {
			return nil, fmt.Errorf("invalid --payload: %w", err)
		}
	}
	return req, nil
}

func runJobsSubmit(cmd *cobra.Command, args []string) error {
	submitted := make([]models.Job, 0, submitCount)
	for i := 0; i < submitCount; i++ {
		req, err := buildRequest(i)
		if err != nil {
			return err
		}

		var job models.Job
		if err := doRequest("POST", "/jobs", req, &job); err != nil {
			return err
		}
		submitted = append(submitted, job)
	}

	if IsJSONOutput() {
		if submitCount == 1 {
			return printJSON(submitted[0])
		}
		return printJSON(submitted)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Type", "Priority", "Status")
	for _, job := range submitted {
		table.Append(job.ID, job.Name, string(job.JobType), fmt.Sprintf("%d", job.Priority), string(job.Status))
	}
	table.Render()
	fmt.Printf("\nSubmitted %d job(s)\n", len(submitted))
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if listStatus != "" {
		q.Set("status", listStatus)
	}
	if listType != "" {
		q.Set("job_type", listType)
	}
	q.Set("page", fmt.Sprintf("%d", listPage))
	q.Set("page_size", fmt.Sprintf("%d", listPageSize))

	var resp struct {
		Jobs  []models.Job `json:"jobs"`
		Total int          `json:"total"`
	}
	if err := doRequest("GET", "/jobs?"+q.Encode(), nil, &resp); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(resp)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Type", "Priority", "Status", "Retries", "Created")
	for _, job := range resp.Jobs {
		table.Append(job.ID, job.Name, string(job.JobType),
			fmt.Sprintf("%d", job.Priority), string(job.Status),
			fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries),
			job.CreatedAt.Format(time.RFC3339))
	}
	table.Render()
	fmt.Printf("\nTotal: %d\n", resp.Total)
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	if !followStatus {
		var job models.Job
		if err := doRequest("GET", "/jobs/"+jobID, nil, &job); err != nil {
			return err
		}
		return displayJob(&job)
	}

	fmt.Printf("Following job %s (press Ctrl+C to stop)...\n\n", jobID)
	for {
		var job models.Job
		if err := doRequest("GET", "/jobs/"+jobID, nil, &job); err != nil {
			return err
		}
		fmt.Printf("[%s] %s retry=%d/%d\n",
			time.Now().Format("15:04:05"), job.Status, job.RetryCount, job.MaxRetries)

		if models.IsTerminalState(job.Status) {
			fmt.Println()
			return displayJob(&job)
		}
		time.Sleep(2 * time.Second)
	}
}

func displayJob(job *models.Job) error {
	if IsJSONOutput() {
		return printJSON(job)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("ID", job.ID)
	table.Append("Name", job.Name)
	table.Append("Type", string(job.JobType))
	table.Append("Status", string(job.Status))
	table.Append("Priority", fmt.Sprintf("%d", job.Priority))
	table.Append("Est. Duration", fmt.Sprintf("%.1fs", job.EstimatedDuration))
	table.Append("Retries", fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries))
	table.Append("Created", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		table.Append("Started", job.StartedAt.Format(time.RFC3339))
	}
	if job.FinishedAt != nil {
		table.Append("Finished", job.FinishedAt.Format(time.RFC3339))
	}
	if job.Error != "" {
		table.Append("Error", job.Error)
	}
	if len(job.Result) > 0 {
		result, _ := json.Marshal(job.Result)
		table.Append("Result", string(result))
	}
	table.Render()
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	if err := doRequest("DELETE", "/jobs/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Printf("Job %s canceled\n", args[0])
	return nil
}

func runJobsStats(cmd *cobra.Command, args []string) error {
	var stats struct {
		Total              int            `json:"total"`
		ByStatus           map[string]int `json:"by_status"`
		AvgExecutionTimeMs float64        `json:"avg_execution_time_ms"`
	}
	if err := doRequest("GET", "/jobs/stats", nil, &stats); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(stats)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Status", "Count")
	for _, status := range []string{"PENDING", "SCHEDULED", "RUNNING", "COMPLETED", "FAILED", "RETRIED"} {
		if count, ok := stats.ByStatus[status]; ok {
			table.Append(status, fmt.Sprintf("%d", count))
		}
	}
	table.Append("TOTAL", fmt.Sprintf("%d", stats.Total))
	table.Render()
	if stats.AvgExecutionTimeMs > 0 {
		fmt.Printf("\nAvg execution time: %.1fms\n", stats.AvgExecutionTimeMs)
	}
	return nil
}

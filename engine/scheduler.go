package engine

import (
	"fmt"
	"time"

	database "github.com/drummonds/goPDF2Image/database"
	"github.com/robfig/cron/v3"
)

// jobRetention is how long finished jobs are kept before the daily cleanup
const jobRetention = 7 * 24 * time.Hour

// InitializeSchedules starts all the cron jobs (currently just one)
func (serverHandler *ServerHandler) InitializeSchedules(db database.Repository) {
	serverConfig, err := database.FetchConfigFromDB(db)
	if err != nil {
		fmt.Println("Error reading db when initializing")
	}

	// Run ingress job immediately at startup in a goroutine
	Logger.Info("Running ingress job at startup")
	go serverHandler.ingressJobFunc(serverConfig, db)

	c := cron.New()
	var ingressJob cron.Job
	ingressJob = cron.FuncJob(func() { serverHandler.ingressJobFunc(serverConfig, db) })
	ingressJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(ingressJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", serverConfig.IngressInterval), ingressJob)
	Logger.Info("Adding ingress job scheduler", "interval_minutes", serverConfig.IngressInterval)

	c.AddJob("@daily", cron.FuncJob(func() { cleanupJobFunc(db) }))
	c.Start()
}

// cleanupJobFunc prunes finished job records older than the retention window
func cleanupJobFunc(db database.Repository) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in cleanup job", "panic", r)
		}
	}()

	job, err := db.CreateJob(database.JobTypeCleanup, "Pruning old job records")
	if err != nil {
		Logger.Error("Unable to create cleanup job", "error", err)
		return
	}

	deleted, err := db.DeleteOldJobs(jobRetention)
	if err != nil {
		Logger.Error("Unable to delete old jobs", "error", err)
		db.UpdateJobError(job.ID, err.Error())
		return
	}

	db.CompleteJob(job.ID, fmt.Sprintf(`{"jobsDeleted": %d}`, deleted))
	Logger.Info("Cleanup job complete", "deleted", deleted)
}

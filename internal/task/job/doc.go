// Package job defines the unit of schedulable work.
//
// A Job names itself, reports its next due time and runs when due. Most jobs
// embed CronSchedule, which derives the due time from a cron expression
// bounded by an optional activation window. SystemJob marks a job as
// permanent, and Registry materializes jobs by type for the scheduler manager.
package job

package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"shikoyatbot/bot/internal/report"
	"shikoyatbot/bot/internal/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "complaints.sqlite3"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	store := storage.NewStorageService(db)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <stats|open|delete|reset> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "stats":
		d, err := report.NewReporter(store).DailyDigest(time.Now())
		if err != nil {
			log.Fatalf("Error building stats: %v", err)
		}
		fmt.Printf("Today:  total=%d open=%d resolved=%d rejected=%d deleted=%d\n",
			d.Today.Total, d.Today.Open, d.Today.Resolved, d.Today.Rejected, d.Today.Deleted)
		fmt.Printf("Cycle %s (since %s): total=%d open=%d resolved=%d rejected=%d\n",
			d.CycleKey, d.CycleStart.Format("2006-01-02"), d.Cycle.Total, d.Cycle.Open, d.Cycle.Resolved, d.Cycle.Rejected)
		fmt.Printf("Open all-time: %d\n", d.OpenAllTime)
	case "open":
		list, err := store.ListOpen(100)
		if err != nil {
			log.Fatalf("Error listing open complaints: %v", err)
		}
		for _, c := range list {
			fmt.Printf("#%d\t%s\t%s\t%s\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04"), c.Employee, c.Text)
		}
		fmt.Printf("%d open complaint(s)\n", len(list))
	case "delete":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin delete <complaint_id>")
			os.Exit(1)
		}
		id, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Println("Invalid complaint ID. Please provide an integer.")
			os.Exit(1)
		}
		changed, err := store.SoftDeleteComplaint(uint(id), time.Now(), 0, "admin-cli")
		if err != nil {
			log.Fatalf("Error deleting complaint: %v", err)
		}
		if !changed {
			fmt.Printf("Complaint %d not found or already deleted.\n", id)
			os.Exit(1)
		}
		fmt.Printf("Complaint %d has been deleted.\n", id)
	case "reset":
		if len(os.Args) != 3 || os.Args[2] != "--yes" {
			fmt.Println("Usage: admin reset --yes (irreversibly clears all records)")
			os.Exit(1)
		}
		if err := store.PurgeAll(); err != nil {
			log.Fatalf("Error purging store: %v", err)
		}
		fmt.Println("All records have been purged.")
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

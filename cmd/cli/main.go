package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/calendar"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/config"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/dashboard"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/legacy"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/notify"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/store"
)

const usage = "expected 'add-user', 'import-legacy', 'delete-booking', 'stats' or 'calendar' subcommand"

func main() {
	addUserCmd := flag.NewFlagSet("add-user", flag.ExitOnError)
	email := addUserCmd.String("email", "", "Email of the new user")
	username := addUserCmd.String("username", "", "Display name of the new user")

	importCmd := flag.NewFlagSet("import-legacy", flag.ExitOnError)
	file := importCmd.String("file", "", "JSON export to import instead of the configured buckets")

	deleteCmd := flag.NewFlagSet("delete-booking", flag.ExitOnError)
	identity := deleteCmd.String("identity", "", "Identity key of the stored booking, e.g. id:ORD-1")

	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)

	calendarCmd := flag.NewFlagSet("calendar", flag.ExitOnError)
	month := calendarCmd.String("month", time.Now().Format("2006-01"), "Month to show (YYYY-MM)")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	ctx := context.Background()

	switch os.Args[1] {
	case "add-user":
		addUserCmd.Parse(os.Args[2:])
		if *email == "" {
			fmt.Println("email is required")
			addUserCmd.PrintDefaults()
			os.Exit(1)
		}
		db := openStore(ctx, cfg)
		defer db.Close()
		if err := db.CreateUser(ctx, *email, *username); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		u, err := db.GetUserByEmail(ctx, *email)
		if err != nil {
			log.Fatalf("Failed to read back user: %v", err)
		}
		fmt.Printf("User '%s' (id %d) is registered.\n", u.Email, u.ID)

	case "import-legacy":
		importCmd.Parse(os.Args[2:])
		db := openStore(ctx, cfg)
		defer db.Close()
		importLegacy(ctx, cfg, db, *file)

	case "delete-booking":
		deleteCmd.Parse(os.Args[2:])
		if *identity == "" {
			fmt.Println("identity is required")
			deleteCmd.PrintDefaults()
			os.Exit(1)
		}
		db := openStore(ctx, cfg)
		defer db.Close()
		if err := db.DeleteBooking(ctx, *identity); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Fatalf("No stored booking with identity %q", *identity)
			}
			log.Fatalf("Failed to delete booking: %v", err)
		}
		fmt.Printf("Booking %s deleted.\n", *identity)

	case "stats":
		statsCmd.Parse(os.Args[2:])
		db := openStore(ctx, cfg)
		defer db.Close()
		printStats(ctx, db)

	case "calendar":
		calendarCmd.Parse(os.Args[2:])
		cursor, err := calendar.ParseMonth(*month)
		if err != nil {
			log.Fatal(err)
		}
		db := openStore(ctx, cfg)
		defer db.Close()
		printCalendar(ctx, cfg, db, cursor)

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) *store.Store {
	db, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	// Ensure tables exist if running cli before server
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func importLegacy(ctx context.Context, cfg *config.Config, db *store.Store, file string) {
	im := legacy.FromConfig(cfg, db, db, nil)

	var (
		res *legacy.Result
		err error
	)
	if file != "" {
		res, err = im.ImportFile(ctx, file)
	} else {
		res, err = im.ImportBuckets(ctx)
	}
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	printJSON(res)

	total, err := db.CountBookings(ctx)
	if err != nil {
		log.Fatalf("Failed to count bookings: %v", err)
	}
	fmt.Printf("%d bookings now stored.\n", total)
}

func loadBookings(ctx context.Context, db *store.Store) []models.Booking {
	raws, err := db.ListBookings(ctx, models.Scope{Kind: models.ScopeAll})
	if err != nil {
		log.Fatalf("Failed to list bookings: %v", err)
	}
	return booking.Merge(raws)
}

func printStats(ctx context.Context, db *store.Store) {
	sum, err := db.GetSummary(ctx)
	if err != nil {
		log.Fatalf("Failed to read summary: %v", err)
	}
	fmt.Printf("users=%d bookings=%d buckets=%d seen_rejections=%d legacy_imports=%d\n",
		sum.Users, sum.Bookings, sum.Buckets, sum.SeenRejections, sum.LegacyImports)

	emails := make([]string, 0, len(sum.BookingsByEmail))
	for e := range sum.BookingsByEmail {
		emails = append(emails, e)
	}
	sort.Strings(emails)
	for _, e := range emails {
		fmt.Printf("  %-32s %d\n", e, sum.BookingsByEmail[e])
	}

	caches, err := db.ListBucketKeys(ctx, notify.ActiveBucketPrefix)
	if err != nil {
		log.Fatalf("Failed to list buckets: %v", err)
	}
	fmt.Printf("active caches: %d\n", len(caches))

	dash := dashboard.Aggregate(loadBookings(ctx, db), sum.Users, time.Now())
	printJSON(dash)
}

func printCalendar(ctx context.Context, cfg *config.Config, db *store.Store, cursor time.Time) {
	cal := calendar.Aggregate(loadBookings(ctx, db), cursor, calendar.WithCapacity(cfg.CapacityThreshold))

	fmt.Printf("%s  (capacity %d)\n", cursor.Format("January 2006"), cal.Capacity)
	fmt.Println(" Mon  Tue  Wed  Thu  Fri  Sat  Sun")
	for i, day := range cal.Grid {
		cell := "   ."
		switch {
		case !day.InMonth:
			cell = "    "
		case day.AtCapacity:
			cell = fmt.Sprintf("%3d!", day.Total)
		case day.Total > 0:
			cell = fmt.Sprintf("%4d", day.Total)
		}
		fmt.Print(cell, " ")
		if i%7 == 6 {
			fmt.Println()
		}
	}
	fmt.Printf("total=%d installment=%d full_payment=%d full_days=%d\n",
		cal.Summary.Total, cal.Summary.Installment, cal.Summary.FullPayment, cal.Summary.FullDays)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

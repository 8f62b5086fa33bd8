// Command eventsearch queries the remote ticketing API and prints a filtered,
// sorted page of events the same way the storefront computes it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"taquilla/apiclient"
	"taquilla/logx"
	"taquilla/search"
)

func main() {
	api := flag.String("api", os.Getenv("API_BASE_URL"), "Remote API base URL (defaults to $API_BASE_URL)")
	text := flag.String("q", "", "Free-text query sent to the remote search")
	country := flag.String("country", "", "Country filter")
	city := flag.String("city", "", "City filter")
	category := flag.String("category", "", "Category filter")
	dateFrom := flag.String("from", "", "Earliest event date (YYYY-MM-DD)")
	dateTo := flag.String("to", "", "Latest event date (YYYY-MM-DD)")
	minPrice := flag.String("min", "", "Minimum price")
	maxPrice := flag.String("max", "", "Maximum price")
	adultOnly := flag.Bool("adult", false, "Only events with a minimum age of 18 or more")
	sortKey := flag.String("sort", "", "dateAsc, dateDesc, priceAsc or priceDesc")
	page := flag.Int("page", 1, "Page number")
	size := flag.Int("size", search.DefaultPageSize, "Page size")
	retries := flag.Int("retries", apiclient.DefaultReadRetries, "Extra attempts for transient failures")
	asJSON := flag.Bool("json", false, "Print the page as JSON")
	facets := flag.Bool("facets", false, "Print available countries, cities and categories")
	verbose := flag.Bool("v", false, "Log remote calls")
	flag.Parse()

	if *api == "" {
		fmt.Fprintln(os.Stderr, "eventsearch: -api or API_BASE_URL is required")
		flag.Usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, closer, _ := logx.New(logx.Options{Level: level, Color: true, Writer: os.Stderr})
	defer closer.Close()

	values := url.Values{}
	set := func(key, v string) {
		if v != "" {
			values.Set(key, v)
		}
	}
	set("country", *country)
	set("city", *city)
	set("category", *category)
	set("dateFrom", *dateFrom)
	set("dateTo", *dateTo)
	set("minPrice", *minPrice)
	set("maxPrice", *maxPrice)
	set("sort", *sortKey)
	set("page", strconv.Itoa(*page))
	set("pageSize", strconv.Itoa(*size))
	if *adultOnly {
		values.Set("adultOnly", "true")
	}

	q, err := search.ParseQuery(values)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eventsearch: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := apiclient.New(*api,
		apiclient.WithReadRetries(*retries),
		apiclient.WithLogger(logger),
	)
	list, err := client.SearchEvents(ctx, *text)
	if err != nil {
		if apiclient.IsCanceled(err) {
			os.Exit(130)
		}
		logger.Error("search events", "error", err)
		os.Exit(1)
	}

	result := search.Run(list, q, nil)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			slog.Error("encode", "error", err)
			os.Exit(1)
		}
		return
	}

	fmt.Print(renderTable(result.Items))
	fmt.Printf("\nPágina %d de %d · %d eventos\n", result.Page, result.TotalPages, result.Total)
	if *facets {
		fmt.Println()
		fmt.Print(renderFacets(search.BuildFacets(search.ApplyFilters(list, search.Filters{}, nil))))
	}
}

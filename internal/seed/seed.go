// Package seed populates an empty store with realistic demo data.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/bryan-buckman/watchdeck/internal/database"
	"github.com/bryan-buckman/watchdeck/internal/model"
	"github.com/google/uuid"
)

type demoFolder struct {
	name  string
	color string
	icon  string
}

type demoWatch struct {
	url      string
	title    string
	folder   string
	tags     []string
	interval int
}

type demoDiff struct {
	removed string
	added   string
	context string
}

var demoFolders = []demoFolder{
	{"Price Tracking", "#f59e0b", "dollar-sign"},
	{"GitHub Releases", "#8b5cf6", "github"},
	{"News", "#3b82f6", "newspaper"},
	{"Government", "#10b981", "landmark"},
	{"Competitors", "#ef4444", "eye"},
}

var demoWatches = []demoWatch{
	// Price Tracking
	{"https://www.amazon.com/dp/B0DJDFHZ8S", "AMD Ryzen 9 9950X — Amazon Price", "Price Tracking", []string{"cpu", "hardware", "amazon"}, 1800},
	{"https://www.bestbuy.com/site/nvidia-geforce-rtx-5080/6601272.p", "RTX 5080 — Best Buy Stock", "Price Tracking", []string{"gpu", "hardware", "bestbuy"}, 900},
	{"https://www.newegg.com/p/pl?d=rx+9070+xt", "RX 9070 XT Search — Newegg", "Price Tracking", []string{"gpu", "hardware", "newegg"}, 900},
	{"https://camelcamelcamel.com/product/B0BSHF7WHW", "Synology DS923+ Price History", "Price Tracking", []string{"nas", "storage", "price-alert"}, 3600},
	{"https://www.amazon.com/dp/B0C8P5Y2NT", "WD Red Plus 22TB NAS Drive", "Price Tracking", []string{"storage", "hardware", "amazon"}, 3600},
	// GitHub Releases
	{"https://github.com/yt-dlp/yt-dlp/releases", "yt-dlp Releases", "GitHub Releases", []string{"tool", "media", "python"}, 7200},
	{"https://github.com/home-assistant/core/releases", "Home Assistant Core Releases", "GitHub Releases", []string{"homelab", "automation", "iot"}, 7200},
	{"https://github.com/tailscale/tailscale/releases", "Tailscale Releases", "GitHub Releases", []string{"vpn", "networking", "go"}, 14400},
	{"https://github.com/grafana/grafana/releases", "Grafana Releases", "GitHub Releases", []string{"monitoring", "dashboard", "go"}, 14400},
	{"https://github.com/dgtlmoon/changedetection.io/releases", "changedetection.io Releases", "GitHub Releases", []string{"monitoring", "self-hosted", "python"}, 14400},
	// News
	{"https://www.bbc.com/news", "BBC News — Top Stories", "News", []string{"world", "breaking"}, 600},
	{"https://www.reuters.com/technology/", "Reuters Technology", "News", []string{"tech", "business"}, 900},
	{"https://techcrunch.com/", "TechCrunch Homepage", "News", []string{"tech", "startups"}, 900},
	{"https://news.ycombinator.com/", "Hacker News Front Page", "News", []string{"tech", "dev", "community"}, 600},
	{"https://arstechnica.com/", "Ars Technica Latest", "News", []string{"tech", "science", "long-form"}, 1800},
	// Government
	{"https://forecast.weather.gov/MapClick.php?lat=38.6270&lon=-90.1994", "NWS Forecast — St. Louis", "Government", []string{"weather", "stl", "alert"}, 1800},
	{"https://tools.usps.com/go/TrackConfirmAction?tLabels=9400111899223456789012", "USPS Package Tracking", "Government", []string{"shipping", "tracking"}, 3600},
	{"https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&company=openai", "SEC EDGAR — OpenAI Filings", "Government", []string{"sec", "finance", "ai"}, 86400},
	{"https://www.fcc.gov/news-events/blog", "FCC Blog — Regulatory Updates", "Government", []string{"regulation", "telecom"}, 43200},
	{"https://sam.gov/search/?keywords=cybersecurity", "SAM.gov — Cybersecurity Contracts", "Government", []string{"contracts", "gov", "security"}, 86400},
	// Competitors
	{"https://www.acmetechsolutions.com/services", "Acme Tech Solutions — Services Page", "Competitors", []string{"competitor", "msp", "pricing"}, 86400},
	{"https://www.primebitconsulting.com/pricing", "PrimeBit Consulting — Pricing", "Competitors", []string{"competitor", "msp", "pricing"}, 86400},
	{"https://www.nexgenitsupport.com/about", "NexGen IT Support — About Us", "Competitors", []string{"competitor", "msp"}, 86400},
	{"https://www.cloudpinnacle.io/blog", "CloudPinnacle — Blog Updates", "Competitors", []string{"competitor", "cloud", "blog"}, 43200},
	{"https://www.byteshieldcyber.com/", "ByteShield Cyber — Homepage", "Competitors", []string{"competitor", "security"}, 86400},
}

var demoDiffs = []demoDiff{
	{"Price: $549.99", "Price: $479.99  SALE", "Product pricing section updated"},
	{"Version 2024.1.3", "Version 2024.2.0", "Release version bumped with changelog"},
	{"Status: In Transit", "Status: Out for Delivery", "Package tracking status updated"},
	{"Cloudy, High 42°F", "Partly Sunny, High 51°F", "Weather forecast updated"},
	{"No recent filings found.", "New filing: Form S-1 Registration Statement", "SEC filing detected"},
	{"Starting at $99/mo", "Starting at $129/mo", "Competitor raised pricing"},
	{"Team: 15 Engineers", "Team: 22 Engineers", "Competitor headcount grew"},
	{"v3.14.1 (Latest)", "v3.15.0 (Latest) - Major Update", "New major release detected"},
	{"In Stock (12 available)", "Only 2 left in stock - order soon", "Low stock alert"},
	{"Expected delivery: March 3", "Expected delivery: February 28", "Delivery estimate updated"},
}

// Seed fills an empty store with demo folders, watches, and change
// history. It is a no-op when watches already exist. Returns whether
// data was written.
func Seed(store database.Store) (bool, error) {
	count, err := store.CountWatches()
	if err != nil {
		return false, fmt.Errorf("count watches: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	now := time.Now().UTC()

	folderIDs := make(map[string]string, len(demoFolders))
	for _, df := range demoFolders {
		icon := df.icon
		f := &model.Folder{
			ID:        uuid.New().String(),
			Name:      df.name,
			Color:     df.color,
			Icon:      &icon,
			CreatedAt: now,
		}
		if err := store.CreateFolder(f); err != nil {
			return false, fmt.Errorf("seed folder %s: %w", df.name, err)
		}
		folderIDs[df.name] = f.ID
	}

	statuses := make([]string, 0, len(demoWatches)+1)
	for _, s := range []struct {
		status string
		n      int
	}{
		{model.StatusOK, 14},
		{model.StatusChanged, 6},
		{model.StatusError, 3},
		{model.StatusPaused, 2},
	} {
		for i := 0; i < s.n; i++ {
			statuses = append(statuses, s.status)
		}
	}
	rand.Shuffle(len(statuses), func(i, j int) {
		statuses[i], statuses[j] = statuses[j], statuses[i]
	})

	for i, dw := range demoWatches {
		folderID := folderIDs[dw.folder]
		w := &model.Watch{
			ID:            uuid.New().String(),
			URL:           dw.url,
			Title:         dw.title,
			CheckInterval: dw.interval,
			FolderID:      &folderID,
			Tags:          dw.tags,
			Status:        statuses[i%len(statuses)],
			LastChecked:   now.Add(-time.Duration(1+rand.Intn(55)) * time.Minute),
			LastChanged:   now.Add(-time.Duration(rand.Intn(24*60)) * time.Minute),
			ChangeCount:   1 + rand.Intn(50),
			CreatedAt:     now.AddDate(0, 0, -(7 + rand.Intn(84))),
		}
		if err := store.CreateWatch(w); err != nil {
			return false, fmt.Errorf("seed watch %s: %w", dw.url, err)
		}

		// 5-12 history entries per watch.
		for n := 5 + rand.Intn(8); n > 0; n-- {
			diff := demoDiffs[rand.Intn(len(demoDiffs))]
			c := &model.Change{
				ID:        uuid.New().String(),
				WatchID:   w.ID,
				Timestamp: now.Add(-time.Duration(rand.Intn(30*24*60)) * time.Minute),
				DiffText: fmt.Sprintf(
					"--- previous\n+++ current\n@@ Change detected @@\n  %s\n- %s\n+ %s\n",
					diff.context, diff.removed, diff.added),
			}
			if err := store.CreateChange(c); err != nil {
				return false, fmt.Errorf("seed change for %s: %w", dw.url, err)
			}
		}
	}

	return true, nil
}

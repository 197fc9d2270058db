package delivery

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

const (
	maxDescription = 4000
	autoDeleteTime = "Jan 02 at 03:04 PM"
)

// HumanSize renders n bytes with one decimal in the largest unit below 1024.
func HumanSize(n int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	v := float64(n)
	for _, u := range units {
		if v < 1024 {
			return fmt.Sprintf("%.1f %s", v, u)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1f TB", v)
}

// HumanDuration renders d as "Ns", "Nm Ns" or "Nh Nm".
func HumanDuration(d time.Duration) string {
	s := int64(d / time.Second)
	switch {
	case s < 60:
		return fmt.Sprintf("%ds", s)
	case s < 3600:
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	default:
		return fmt.Sprintf("%dh %dm", s/3600, (s%3600)/60)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Summary is the completion notice for a freshly ingested artifact.
func Summary(a *models.Artifact, loc *time.Location) string {
	platform := a.SourcePlatform
	if platform == "" {
		platform = "Unknown"
	}
	var b strings.Builder
	b.WriteString("✅ Download complete\n\n")
	fmt.Fprintf(&b, "📹 Original quality: %s\n", orNA(a.ResolvedQuality))
	fmt.Fprintf(&b, "⬇️ Downloaded quality: %s\n", a.RequestedQuality)
	fmt.Fprintf(&b, "📦 File size: %s\n", HumanSize(a.FileSize))
	fmt.Fprintf(&b, "⏱ Processing time: %s\n", HumanDuration(a.ProcessingTime))
	fmt.Fprintf(&b, "🎬 Format: %s (%s)\n", a.Format, orNA(a.Codec))
	fmt.Fprintf(&b, "🗑 Auto-delete: %s\n\n", a.ExpiresAt.In(loc).Format(autoDeleteTime))
	fmt.Fprintf(&b, "Source: %s\n", platform)
	fmt.Fprintf(&b, "Title: %s", a.Title)
	return b.String()
}

// DescriptionText returns the description message, or "" when there is
// nothing worth sending. Long descriptions are cut at maxDescription runes.
func DescriptionText(desc string) string {
	if strings.TrimSpace(desc) == "" {
		return ""
	}
	if r := []rune(desc); len(r) > maxDescription {
		desc = string(r[:maxDescription]) + "..."
	}
	return "📝 Description:\n\n" + desc
}

// FailureText is the notice for a job that will not be retried.
func FailureText(reason string) string {
	return "❌ Download failed: " + reason
}

// ErrorText is the generic notice for a fault after extraction succeeded.
func ErrorText(err error) string {
	return "❌ Error: " + err.Error()
}

func tooLargeText(size, limit int64, link string) string {
	msg := fmt.Sprintf("⚠️ File too large for Telegram Bot API (%.1f MB > %d MB).",
		float64(size)/(1<<20), limit>>20)
	if link != "" {
		msg += "\n\n📥 Download via web interface:\n" + link
	}
	return msg
}

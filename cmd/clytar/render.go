package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/clytar/clytar-backend/internal/projects/domain"
	usersdomain "github.com/clytar/clytar-backend/internal/users/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	badgeStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#FFFFFF"))
)

var statusColors = map[domain.Status]string{
	domain.StatusDraft:         "#6B7280",
	domain.StatusProcessing:    "#F59E0B",
	domain.StatusInsightsReady: "#3B82F6",
	domain.StatusFinalReview:   "#8B5CF6",
	domain.StatusScheduled:     "#0EA5E9",
	domain.StatusPublished:     "#10B981",
}

func statusBadge(s domain.Status) string {
	color, ok := statusColors[s]
	if !ok {
		color = "#6B7280"
	}
	return badgeStyle.Background(lipgloss.Color(color)).Render(string(s))
}

func renderProjectLine(p *domain.Project) string {
	return fmt.Sprintf("%s  %s  %s  %s",
		dimStyle.Render(p.ID),
		statusBadge(p.Status),
		p.Title,
		dimStyle.Render(p.UpdatedAt.Local().Format("2006-01-02 15:04")),
	)
}

func renderList(title string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(headingStyle.Render(title))
	b.WriteString("\n")
	for _, it := range items {
		b.WriteString("  • ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return b.String()
}

// renderProject shows what the current stage needs: the insights panel,
// the draft, or the schedule.
func renderProject(p *domain.Project) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Title))
	b.WriteString("  ")
	b.WriteString(statusBadge(p.Status))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %s · v%d", p.ID, p.ContentType, p.Version)))
	b.WriteString("\n\n")

	if p.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\nAudience:  %s\n\n", p.Objective, p.Audience)
	}

	if ins := p.Insights; !ins.Empty() && p.Status == domain.StatusInsightsReady {
		b.WriteString(renderList("Trending keywords", ins.TrendingKeywords))
		b.WriteString(renderList("Best formats", ins.BestFormats))
		b.WriteString(renderList("Audience", ins.AudienceInsights))
		b.WriteString(renderList("Competitors", ins.CompetitorInsights))
		b.WriteString(renderList("Opportunities", ins.Opportunities))
	}

	if p.DraftFinal != "" {
		b.WriteString(boxStyle.Render(strings.TrimRight(p.DraftFinal, "\n")))
		b.WriteString("\n")
	}
	if p.RefinementNotes != "" {
		b.WriteString(dimStyle.Render("Refinement: " + p.RefinementNotes))
		b.WriteString("\n")
	}
	if p.OptimizationNotes != "" {
		b.WriteString(dimStyle.Render("Optimization: " + p.OptimizationNotes))
		b.WriteString("\n")
	}

	if s := p.Schedule; s != nil {
		when := s.ScheduledAt.Local().Format("2006-01-02 15:04")
		if s.PublishNow {
			when = "now"
		}
		fmt.Fprintf(&b, "\nPublishing to %s (%s) at %s", s.Platform, s.Category, when)
		if len(s.AdditionalPlatforms) > 0 {
			fmt.Fprintf(&b, ", also %s", strings.Join(s.AdditionalPlatforms, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderUser(u *usersdomain.User) string {
	name := u.FullName
	if name == "" {
		name = u.Email
	}
	line := titleStyle.Render(name) + "  " + dimStyle.Render(u.Email)
	meta := fmt.Sprintf("%s · %s", u.Role, u.Plan)
	if u.Company != "" {
		meta += " · " + u.Company
	}
	return line + "\n" + dimStyle.Render(meta)
}

func renderUserRow(u *usersdomain.User) string {
	return fmt.Sprintf("%-36s  %-32s  %-6s  %s", dimStyle.Render(u.ID), u.Email, u.Role, u.Plan)
}

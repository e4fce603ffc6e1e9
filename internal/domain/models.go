// Package domain defines the persistence models for users, keyword sources
// (ICPs, competitors, performance blogs, report targets) and the blog-request
// cycle. These types are mapped with GORM and form the core data layer of the
// dashboard.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// User is a dashboard account. Passwords are stored as bcrypt hashes.
type User struct {
	Username     string    `json:"username"   gorm:"type:varchar(64);primaryKey"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(100);not null"`
	WebsiteURL   string    `json:"websiteUrl" gorm:"type:varchar(2048);not null;default:''"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// ICPGroup is one ideal customer profile of a user together with its
// keyword rows.
//
// Fields:
//   - Position: display order inside the user's ICP list.
//   - Rows: keyword rows, cascade-deleted with the group.
type ICPGroup struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Username    string    `json:"-"           gorm:"type:varchar(64);not null;index:idx_icp_user,priority:1"`
	Position    int       `json:"-"           gorm:"not null;index:idx_icp_user,priority:2"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Rows []ICPRow `json:"rows" gorm:"foreignKey:GroupID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ICPGroup.
func (ICPGroup) TableName() string { return "icp_groups" }

// ICPRow is a keyword inside an ICP group.
type ICPRow struct {
	ID       string `json:"-"        gorm:"type:char(36);primaryKey"`
	GroupID  string `json:"-"        gorm:"type:char(36);not null;index:idx_icp_rows,priority:1"`
	Position int    `json:"-"        gorm:"not null;index:idx_icp_rows,priority:2"`
	Keyword  string `json:"keyword"  gorm:"type:text;not null"`
	Targeted bool   `json:"targeted" gorm:"not null"`
}

// TableName returns the database table name for ICPRow.
func (ICPRow) TableName() string { return "icp_rows" }

// Competitor is a tracked competitor domain. Rows keep the raw JSON of each
// keyword row so historical keyword shapes survive untouched.
type Competitor struct {
	ID        string         `json:"id"     gorm:"type:char(36);primaryKey"`
	Username  string         `json:"-"      gorm:"type:varchar(64);not null;uniqueIndex:ux_competitor_user_domain,priority:1"`
	Domain    string         `json:"domain" gorm:"type:varchar(255);not null;uniqueIndex:ux_competitor_user_domain,priority:2"`
	URL       string         `json:"url"    gorm:"type:varchar(2048);not null"`
	Rows      datatypes.JSON `json:"rows"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Competitor.
func (Competitor) TableName() string { return "competitors" }

// PerformanceBlog is a published article whose keyword plan and SERP
// citations are tracked.
//
// Fields:
//   - Key: SafeKey(URL), unique per user.
//   - Processing: set while the analysis pipeline runs.
//   - Plan / Serp / Targets / Aggregates: JSON documents, see services.
type PerformanceBlog struct {
	ID           string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Username     string         `json:"-"           gorm:"type:varchar(64);not null;uniqueIndex:ux_perf_user_key,priority:1"`
	Key          string         `json:"key"         gorm:"type:varchar(2048);not null;uniqueIndex:ux_perf_user_key,priority:2"`
	URL          string         `json:"url"         gorm:"type:varchar(2048);not null"`
	Processing   bool           `json:"processing"  gorm:"not null"`
	Markdown     string         `json:"-"           gorm:"type:text;not null;default:''"`
	ScrapedAt    *time.Time     `json:"scrapedAt,omitempty"`
	Plan         datatypes.JSON `json:"plan,omitempty"`
	Serp         datatypes.JSON `json:"serp,omitempty"`
	Targets      datatypes.JSON `json:"targets,omitempty"`
	Aggregates   datatypes.JSON `json:"aggregates,omitempty"`
	AggregatedAt *time.Time     `json:"aggregatedAt,omitempty" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name for PerformanceBlog.
func (PerformanceBlog) TableName() string { return "performance_blogs" }

// ReportTarget is a legacy target entry mirrored from gap reports.
type ReportTarget struct {
	ID       string `json:"-"        gorm:"type:char(36);primaryKey"`
	Username string `json:"-"        gorm:"type:varchar(64);not null;uniqueIndex:ux_report_user_key,priority:1"`
	Key      string `json:"-"        gorm:"type:varchar(1024);not null;uniqueIndex:ux_report_user_key,priority:2"`
	Keyword  string `json:"keyword"  gorm:"type:text;not null"`
	Targeted *bool  `json:"targeted,omitempty"`

	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for ReportTarget.
func (ReportTarget) TableName() string { return "report_targets" }

// CycleState is the per-user lock, batch and version row. Version is bumped
// by every conditional write.
type CycleState struct {
	Username      string         `gorm:"type:varchar(64);primaryKey"`
	Unlocked      bool           `gorm:"not null"`
	Version       int64          `gorm:"not null"`
	Batch         datatypes.JSON // null when no batch is active
	LastArchiveAt int64          `gorm:"not null"`
	UpdatedAt     time.Time
}

// TableName returns the database table name for CycleState.
func (CycleState) TableName() string { return "cycle_states" }

// RequestedItem is a submitted keyword of the current cycle with its card.
type RequestedItem struct {
	ID          string `gorm:"type:char(36);primaryKey"`
	Username    string `gorm:"type:varchar(64);not null;uniqueIndex:ux_requested_user_kw,priority:1"`
	Keyword     string `gorm:"type:varchar(1024);not null;uniqueIndex:ux_requested_user_kw,priority:2"`
	Seq         int    `gorm:"not null"`
	Submitted   bool   `gorm:"not null"`
	SubmittedAt int64  `gorm:"not null"`
	Title       string `gorm:"type:text;not null"`
	Excerpt     string `gorm:"type:text;not null"`
	ImageURL    string `gorm:"type:varchar(2048);not null"`
	Date        string `gorm:"type:varchar(10);not null"`
	ReadTime    string `gorm:"type:varchar(32);not null"`
	URL         string `gorm:"type:varchar(2048);not null"`
	Status      string `gorm:"type:varchar(16);not null;check:status IN ('pending','published')"`
	CreatedAt   time.Time
}

// TableName returns the database table name for RequestedItem.
func (RequestedItem) TableName() string { return "requested_items" }

// CycleArchive is the immutable snapshot of a closed cycle. ArchivedAt is
// unique per user and strictly increasing.
type CycleArchive struct {
	ID         string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Username   string         `json:"-"          gorm:"type:varchar(64);not null;uniqueIndex:ux_archive_user_ts,priority:1"`
	ArchivedAt int64          `json:"archivedAt" gorm:"not null;uniqueIndex:ux_archive_user_ts,priority:2"`
	Batch      datatypes.JSON `json:"batch"`
	Keywords   datatypes.JSON `json:"keywords"`
	Scheduled  datatypes.JSON `json:"scheduled"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TableName returns the database table name for CycleArchive.
func (CycleArchive) TableName() string { return "cycle_archives" }

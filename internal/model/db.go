package model

import (
	"time"

	"gorm.io/datatypes"
)

// DataSource 抓取来源标记
const (
	DataSourceLatest  = "latest"  // 最新排名页
	DataSourceArchive = "archive" // 历史存档页
)

// Player 选手，自然键为JTA登录番号，首次出现时创建，之后只更新可变字段
type Player struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	RegistrationNo string    `gorm:"column:registration_no;type:varchar(32);uniqueIndex;not null;comment:JTA登录番号（自然键，不可变）"`
	Name           string    `gorm:"column:name;type:varchar(128);not null;comment:选手姓名"`
	Club           string    `gorm:"column:club;type:varchar(128);comment:所属俱乐部"`
	Prefecture     string    `gorm:"column:prefecture;type:varchar(32);comment:都道府县"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

// Ranking 一条排名观测：选手×类别×基准日唯一
type Ranking struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PlayerID      uint64    `gorm:"column:player_id;type:bigint;not null;uniqueIndex:uk_player_category_date;comment:关联选手ID"`
	CategoryCode  string    `gorm:"column:category_code;type:varchar(8);not null;uniqueIndex:uk_player_category_date;index:idx_category_latest;comment:类别代码"`
	Gender        string    `gorm:"column:gender;type:varchar(8);not null;comment:性别：male/female"`
	Type          string    `gorm:"column:type;type:varchar(8);not null;comment:项目：singles/doubles"`
	AgeGroup      int       `gorm:"column:age_group;type:int;not null;comment:年龄组"`
	RankPosition  int       `gorm:"column:rank_position;type:int;not null;comment:名次"`
	IsTied        bool      `gorm:"column:is_tied;type:boolean;default:false;comment:是否同名次"`
	TotalPoints   int       `gorm:"column:total_points;type:int;default:0;comment:合计积分"`
	CalcPoints    int       `gorm:"column:calc_points;type:int;default:0;comment:计算积分"`
	RankingDate   time.Time `gorm:"column:ranking_date;type:timestamp;not null;uniqueIndex:uk_player_category_date;index;comment:排名基准日"`
	IsLatest      bool      `gorm:"column:is_latest;type:boolean;default:false;index:idx_category_latest;comment:是否最新（每类别至多一个基准日为真）"`
	ScrapingLogID uint64    `gorm:"column:scraping_log_id;type:bigint;index;comment:产生该行的抓取日志ID"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

// ScrapingLog 抓取尝试日志（仅追加；清理重复数据是唯一允许的删除路径）
// 某期×类别是否已完成以此表为准，零记录的成功也算完成
type ScrapingLog struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	CategoryCode    string    `gorm:"column:category_code;type:varchar(8);not null;index;comment:类别代码"`
	Gender          string    `gorm:"column:gender;type:varchar(8);not null;comment:性别"`
	Type            string    `gorm:"column:type;type:varchar(8);not null;comment:项目"`
	AgeGroup        int       `gorm:"column:age_group;type:int;not null;comment:年龄组"`
	RankingDate     time.Time `gorm:"column:ranking_date;type:timestamp;not null;index;comment:排名基准日"`
	ArchivePeriodID *uint64   `gorm:"column:archive_period_id;type:bigint;comment:关联存档期ID"`
	TotalRecords    int       `gorm:"column:total_records;type:int;default:0;comment:解析出的记录数"`
	Success         bool      `gorm:"column:success;type:boolean;not null;comment:是否成功（404空页也算成功）"`
	ErrorMessage    *string   `gorm:"column:error_message;type:text;comment:错误详情"`
	ExecutionTimeMs int64     `gorm:"column:execution_time_ms;type:bigint;default:0;comment:耗时（毫秒）"`
	DataSource      string    `gorm:"column:data_source;type:varchar(16);default:archive;index;comment:来源：latest/archive"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamp;default:now();index;comment:创建时间"`
}

// ArchivePeriod 每期的完成度聚合，始终等于该月成功日志的函数，只被重算、不独立维护
type ArchivePeriod struct {
	ID                  uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Year                int       `gorm:"column:year;type:int;not null;uniqueIndex:uk_year_month;comment:年"`
	Month               int       `gorm:"column:month;type:int;not null;uniqueIndex:uk_year_month;comment:月"`
	ArchiveDate         time.Time `gorm:"column:archive_date;type:timestamp;not null;comment:排名基准日（月末）"`
	DisplayName         string    `gorm:"column:display_name;type:varchar(32);comment:展示名"`
	TotalCategories     int       `gorm:"column:total_categories;type:int;default:44;comment:类别总数"`
	ProcessedCategories int       `gorm:"column:processed_categories;type:int;default:0;comment:已完成类别数"`
	IsProcessed         bool      `gorm:"column:is_processed;type:boolean;default:false;comment:是否全部完成"`
	CreatedAt           time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt           time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

// PlayerCategoryHistory 选手在某类别的出场汇总
type PlayerCategoryHistory struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PlayerID         uint64    `gorm:"column:player_id;type:bigint;not null;uniqueIndex:uk_player_category;comment:关联选手ID"`
	CategoryCode     string    `gorm:"column:category_code;type:varchar(8);not null;uniqueIndex:uk_player_category;comment:类别代码"`
	Gender           string    `gorm:"column:gender;type:varchar(8);not null;comment:性别"`
	Type             string    `gorm:"column:type;type:varchar(8);not null;comment:项目"`
	AgeGroup         int       `gorm:"column:age_group;type:int;not null;comment:年龄组"`
	FirstAppearance  time.Time `gorm:"column:first_appearance;type:timestamp;not null;comment:首次出场基准日"`
	LastAppearance   time.Time `gorm:"column:last_appearance;type:timestamp;not null;comment:最近出场基准日"`
	TotalAppearances int       `gorm:"column:total_appearances;type:int;default:0;comment:出场次数"`
	BestRank         *int      `gorm:"column:best_rank;type:int;comment:历史最佳名次"`
	BestPoints       *int      `gorm:"column:best_points;type:int;comment:历史最高积分"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt        time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

// SyncRun 异步批量同步运行状态（供 /sync/runs/:run_uuid 轮询）
type SyncRun struct {
	ID              uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	RunUUID         string         `gorm:"column:run_uuid;type:varchar(64);uniqueIndex;not null;comment:运行全局唯一ID"`
	Status          string         `gorm:"column:status;type:varchar(16);default:running;comment:状态：running/completed/canceled/failed"`
	StartYear       int            `gorm:"column:start_year;type:int;not null;comment:起始年"`
	StartMonth      int            `gorm:"column:start_month;type:int;not null;comment:起始月"`
	EndYear         *int           `gorm:"column:end_year;type:int;comment:截止年（空为当前）"`
	EndMonth        *int           `gorm:"column:end_month;type:int;comment:截止月"`
	SkipExisting    bool           `gorm:"column:skip_existing;type:boolean;default:false;comment:是否跳过已完成条目"`
	TotalItems      int            `gorm:"column:total_items;type:int;default:0;comment:条目总数"`
	ProcessedItems  int            `gorm:"column:processed_items;type:int;default:0;comment:已处理条目数"`
	SuccessfulItems int            `gorm:"column:successful_items;type:int;default:0;comment:成功条目数"`
	FailedItems     int            `gorm:"column:failed_items;type:int;default:0;comment:失败条目数"`
	CurrentItem     string         `gorm:"column:current_item;type:varchar(128);comment:当前处理条目"`
	Errors          datatypes.JSON `gorm:"column:errors;type:jsonb;comment:错误尾部列表（有界）"`
	StartedAt       time.Time      `gorm:"column:started_at;type:timestamp;default:now();comment:开始时间"`
	FinishedAt      *time.Time     `gorm:"column:finished_at;type:timestamp;comment:结束时间"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (Player) TableName() string                { return "players" }
func (Ranking) TableName() string               { return "rankings" }
func (ScrapingLog) TableName() string           { return "scraping_logs" }
func (ArchivePeriod) TableName() string         { return "archive_periods" }
func (PlayerCategoryHistory) TableName() string { return "player_category_histories" }
func (SyncRun) TableName() string               { return "sync_runs" }

package recorder

import (
	"fmt"
	"net/url"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresOption defines connection options for the PostgreSQL sink.
type PostgresOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

// RecordRow is the persisted form of a sample, one table per run.
type RecordRow struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Run           string `gorm:"index"`
	Timestamp     int64
	Balance       float64
	Position      float64
	Fee           float64
	TradingVolume float64
	TradingValue  float64
	NumTrades     int64
	Price         float64
}

// TableName sets the sink table.
func (RecordRow) TableName() string { return "backtest_records" }

// PostgresSink writes recorder samples to PostgreSQL.
type PostgresSink struct {
	opt PostgresOption
	db  *gorm.DB
}

// NewPostgresSink opens a connection pool and migrates the record table.
func NewPostgresSink(option PostgresOption) (*PostgresSink, error) {
	connString, err := option.dsn()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	if err := db.AutoMigrate(&RecordRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate record table")
	}

	return &PostgresSink{opt: option, db: db}, nil
}

// Save persists the recorder's samples under the given run name.
func (s *PostgresSink) Save(run string, r *Recorder) error {
	rows := r.Rows()
	if len(rows) == 0 {
		return nil
	}

	records := make([]RecordRow, 0, len(rows))
	for _, row := range rows {
		records = append(records, RecordRow{
			Run:           run,
			Timestamp:     row.Timestamp,
			Balance:       row.Balance,
			Position:      row.Position,
			Fee:           row.Fee,
			TradingVolume: row.TradingVolume,
			TradingValue:  row.TradingValue,
			NumTrades:     row.NumTrades,
			Price:         row.Price,
		})
	}

	if err := s.db.CreateInBatches(records, 500).Error; err != nil {
		return errors.Wrap(err, "insert records").With("run", run)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PostgresSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt PostgresOption) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	if len(query) != 0 {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

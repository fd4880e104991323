package database

// Supported values of Config.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config holds configuration for the database connection.
type Config struct {
	// Driver is the database driver (sqlite, mysql, postgres).
	Driver string `mapstructure:"driver" default:"sqlite" validate:"oneof=sqlite mysql postgres"`
	// Path is the SQLite database file. ":memory:" opens a private in-memory database.
	Path string `mapstructure:"path" default:"timeline.db"`
	// Host is the database host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port. Zero selects the driver's default port.
	Port int `mapstructure:"port" default:"0"`
	// User is the database user.
	User string `mapstructure:"user" default:"timeline"`
	// Password is the database password.
	Password string `mapstructure:"password" default:""`
	// Name is the database name.
	Name string `mapstructure:"name" default:"timeline"`
	// SSLMode is passed to postgres as sslmode.
	SSLMode string `mapstructure:"ssl_mode" default:"disable"`
	// TimeoutSeconds bounds connection setup and the initial ping.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// MaxOpenConns caps the pool for server databases. SQLite files always use one writer.
	MaxOpenConns int `mapstructure:"max_open_conns" default:"20"`
}

package config

var Conf Config

type Config struct {
	Server     Server     `mapstructure:"server" json:"server" yaml:"server"`
	Datasource Datasource `mapstructure:"datasource" json:"datasource" yaml:"datasource"`
	Storage    Storage    `mapstructure:"storage" json:"storage" yaml:"storage"`
	Cloud      Cloud      `mapstructure:"cloud" json:"cloud" yaml:"cloud"`
	Share      Share      `mapstructure:"share" json:"share" yaml:"share"`
	Worker     Worker     `mapstructure:"worker" json:"worker" yaml:"worker"`
	Auth       Auth       `mapstructure:"auth" json:"auth" yaml:"auth"`
}

type Server struct {
	Port int `mapstructure:"port" json:"port" yaml:"port"`
}

type Datasource struct {
	URL string `mapstructure:"url" json:"url" yaml:"url"`
}

type Storage struct {
	// BasePath is the root directory for locally stored blobs.
	BasePath string `mapstructure:"base_path" json:"basePath" yaml:"base_path"`
	// ArchivePath holds generated bulk-download archives awaiting cleanup.
	ArchivePath string `mapstructure:"archive_path" json:"archivePath" yaml:"archive_path"`
}

type Cloud struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Region    string `mapstructure:"region" json:"region" yaml:"region"`
	Bucket    string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	Endpoint  string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" json:"-" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"-" yaml:"secret_key"`
}

type Share struct {
	// LinkTTLDays bounds public share links; 0 falls back to 30.
	LinkTTLDays int `mapstructure:"link_ttl_days" json:"linkTtlDays" yaml:"link_ttl_days"`
}

type Worker struct {
	Count      int `mapstructure:"count" json:"count" yaml:"count"`
	MaxRetries int `mapstructure:"max_retries" json:"maxRetries" yaml:"max_retries"`
}

type Auth struct {
	// Secret verifies access tokens issued by the identity provider.
	Secret string `mapstructure:"secret" json:"-" yaml:"secret"`
	Issuer string `mapstructure:"issuer" json:"issuer" yaml:"issuer"`
}

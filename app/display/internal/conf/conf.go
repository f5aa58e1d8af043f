package conf

type Bootstrap struct {
	Server   *Server   `json:"server"`
	Data     *Data     `json:"data"`
	Auth     *Auth     `json:"auth"`
	Research *Research `json:"research"`
}

type Auth struct {
	JwtKey string `json:"jwt_key"`
}

type Server struct {
	Http *HTTP `json:"http"`
}

type HTTP struct {
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

type Data struct {
	Database *Database `json:"database"`
}

type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Research 研报引擎配置，未配置时只提供查询接口
type Research struct {
	Llm         *LLM         `json:"llm"`
	Search      *Search      `json:"search"`
	Redis       *Redis       `json:"redis"`
	Rag         *RAG         `json:"rag"`
	Report      *Report      `json:"report"`
	Converter   *Converter   `json:"converter"`
	Log         *Log         `json:"log"`
	Concurrency *Concurrency `json:"concurrency"`
}

type LLM struct {
	BaseUrl string `json:"base_url"`
	ApiKey  string `json:"api_key"`
	Model   string `json:"model"`
}

type Search struct {
	Provider string   `json:"provider"`
	Tavily   *Tavily  `json:"tavily"`
	Searxng  *SearXNG `json:"searxng"`
}

type Tavily struct {
	ApiKey string `json:"api_key"`
}

type SearXNG struct {
	BaseUrl string `json:"base_url"`
	Timeout int32  `json:"timeout"`
}

type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	Db       int32  `json:"db"`
}

type RAG struct {
	Enabled bool   `json:"enabled"`
	Store   string `json:"store"`
}

type Report struct {
	OutputDir     string `json:"output_dir"`
	ArchiveDir    string `json:"archive_dir"`
	DiscussRounds int32  `json:"discuss_rounds"`
	MaxIterations int32  `json:"max_iterations"`
}

type Converter struct {
	Engine string `json:"engine"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type Concurrency struct {
	Qps int32 `json:"qps"`
	Rpm int32 `json:"rpm"`
}

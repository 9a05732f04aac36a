package model

const (
	AppServiceName = "vision_report"
	NamespaceName  = "trendmicro"
)

var versions = []string{
	"26.10",
	"26.09",
}

var (
	CurrentVersion = versions[0]
)

package model

const (
	AppServiceName = "hotel_exporter"
	NamespaceName  = "traveldata"
)

var versions = []string{
	"26.08",
	"26.06",
	"26.04",
}

var (
	CurrentVersion = versions[0]
)

package cli

import "github.com/urfave/cli/v3"

func NewAppForTest(version string) *cli.Command {
	return newApp(version)
}

var SplitTags = splitTags

var RunChat = runChat

var (
	GetIndexConfig = getIndexConfig
	DescribeIndex  = describeIndex
)

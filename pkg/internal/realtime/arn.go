package realtime

import (
	"fmt"
	"strings"
)

const (
	StageArnSeparator = ":stage/"
	HostUserPrefix    = "host:"
)

// BuildStageArn reconstructs a stage ARN from configuration; raw ARNs are
// never stored or accepted from callers.
func BuildStageArn(region, account, stageID string) string {
	return fmt.Sprintf("arn:aws:ivs:%s:%s%s%s", region, account, StageArnSeparator, stageID)
}

func ExtractStageID(stageArn string) string {
	_, stageID, found := strings.Cut(stageArn, StageArnSeparator)
	if !found {
		return ""
	}
	return stageID
}

// ExtractChannelID returns the last path segment of a channel ARN.
func ExtractChannelID(channelArn string) string {
	idx := strings.LastIndex(channelArn, "/")
	if idx < 0 {
		return channelArn
	}
	return channelArn[idx+1:]
}

// HostUserID derives the deterministic host identity for a channel, so any
// client can recognize the host without a side channel.
func HostUserID(channelArn string) string {
	return HostUserPrefix + ExtractChannelID(channelArn)
}

func IsHostUserID(userID string) bool {
	return strings.HasPrefix(userID, HostUserPrefix)
}

package platform

import "fmt"

func MentionUser(userId string) string {
	return fmt.Sprintf("<@%v>", userId)
}

func MentionRole(roleId string) string {
	return fmt.Sprintf("<@&%v>", roleId)
}

func MentionChannel(channelId string) string {
	return fmt.Sprintf("<#%v>", channelId)
}

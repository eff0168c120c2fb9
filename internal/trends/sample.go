package trends

import "fmt"

var sampleTitles = []string{
	"Artificial Intelligence",
	"Climate Change",
	"Cryptocurrency",
	"Electric Vehicles",
	"Remote Work",
	"Sustainable Energy",
	"Digital Health",
	"Space Exploration",
	"Cybersecurity",
	"Blockchain Technology",
}

// SampleTopics returns the deterministic placeholder list served when no
// acquisition step produced real topics.
func SampleTopics() []Topic {
	topics := make([]Topic, 0, len(sampleTitles))
	for i, title := range sampleTitles {
		topics = append(topics, Topic{
			Title:            title,
			Ranking:          IntPtr(i + 1),
			SearchVolume:     StringPtr(fmt.Sprintf("%dK searches", 1000-i*50)),
			ChangePercentage: StringPtr(fmt.Sprintf("+%d%%", 20+i*5)),
		})
	}
	return topics
}

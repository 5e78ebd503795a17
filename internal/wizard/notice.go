package wizard

type NoticeKind string

const (
	NoticeSuccess  NoticeKind = "success"
	NoticeDegraded NoticeKind = "degraded"
	NoticeFailure  NoticeKind = "failure"
)

// Notice is the user-facing message attached to an operation outcome.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

func success(title, description string) *Notice {
	return &Notice{Kind: NoticeSuccess, Title: title, Description: description}
}

func degraded(title, description string) *Notice {
	return &Notice{Kind: NoticeDegraded, Title: title, Description: description}
}

func failure(title, description string) *Notice {
	return &Notice{Kind: NoticeFailure, Title: title, Description: description}
}

package notifications

import (
	"fmt"
	"strings"

	"hrerp/internal/domain/leave"
)

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func renderInApp(kind string, payload map[string]any) (string, string) {
	who := payloadString(payload, "employeeName")
	if who == "" {
		who = "An employee"
	}
	what := payloadString(payload, "leaveTypeName")
	if what == "" {
		what = "leave"
	}
	span := ""
	if start := payloadString(payload, "startDate"); start != "" {
		span = fmt.Sprintf(" from %s to %s", start, payloadString(payload, "endDate"))
	} else if occurred := payloadString(payload, "occurredOn"); occurred != "" {
		span = " on " + occurred
	}

	switch kind {
	case leave.KindSubmitted:
		return "Leave request awaiting your review", fmt.Sprintf("%s requested %s%s.", who, what, span)
	case leave.KindApprovedLvl1:
		return "Leave request approved by supervisor", fmt.Sprintf("Your %s request%s passed first approval and awaits final approval.", what, span)
	case leave.KindAwaitingFinal:
		return "Leave request awaiting final approval", fmt.Sprintf("%s's %s request%s needs final approval.", who, what, span)
	case leave.KindApproved:
		return "Leave request approved", fmt.Sprintf("Your %s request%s has been approved.", what, span)
	case leave.KindRejected:
		return "Leave request rejected", withComment(fmt.Sprintf("Your %s request%s has been rejected.", what, span), payloadString(payload, "comment"))
	case leave.KindCancelled:
		return "Leave request cancelled", fmt.Sprintf("Your %s request%s has been cancelled.", what, span)
	case leave.KindFinalUndone:
		return "Final approval withdrawn", withComment(fmt.Sprintf("Final approval of your %s request%s was withdrawn.", what, span), payloadString(payload, "comment"))
	}
	return "Leave request updated", fmt.Sprintf("%s request%s was updated.", what, span)
}

func withComment(text, comment string) string {
	if comment == "" {
		return text
	}
	return text + " Comment: " + comment
}

func renderStatusEmail(fields map[string]string) (string, string) {
	status := strings.ReplaceAll(fields["status"], "_", " ")
	subject := fmt.Sprintf("Your %s request is now %s", fallback(fields["leaveTypeName"], "leave"), status)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", fallback(fields["employeeName"], "there"))
	fmt.Fprintf(&b, "Your %s request (%s) changed status to %s.\n", fallback(fields["leaveTypeName"], "leave"), fields["requestId"], status)
	if days := fields["days"]; days != "" && days != "0" {
		fmt.Fprintf(&b, "Days: %s\n", days)
	}
	if comment := fields["comment"]; comment != "" {
		fmt.Fprintf(&b, "Comment: %s\n", comment)
	}
	b.WriteString("\nThis is an automated message.\n")
	return subject, b.String()
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

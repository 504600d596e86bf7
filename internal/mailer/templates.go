package mailer

import (
	"bytes"
	"html/template"
)

// InviteData fills the invitation email sent to the invited user.
type InviteData struct {
	AdminName  string
	GroupName  string
	AcceptURL  string
	DeclineURL string
}

// ReplyData fills the accept/decline notifications sent back to the admin.
type ReplyData struct {
	Username  string
	GroupName string
}

const inviteTemplate = `<html>
<body style="font-family: sans-serif;">
  <h2>You have been invited to a group</h2>
  <p>{{.AdminName}} invited you to join the group <strong>{{.GroupName}}</strong>.</p>
  <p>
    <a href="{{.AcceptURL}}">Accept the invitation</a> ·
    <a href="{{.DeclineURL}}">Decline</a>
  </p>
  <p>This link expires in 72 hours.</p>
</body>
</html>`

const acceptedTemplate = `<html>
<body style="font-family: sans-serif;">
  <p><strong>{{.Username}}</strong> accepted your invitation and joined <strong>{{.GroupName}}</strong>.</p>
</body>
</html>`

const declinedTemplate = `<html>
<body style="font-family: sans-serif;">
  <p><strong>{{.Username}}</strong> declined your invitation to <strong>{{.GroupName}}</strong>.</p>
</body>
</html>`

var (
	inviteTmpl   = template.Must(template.New("invite").Parse(inviteTemplate))
	acceptedTmpl = template.Must(template.New("accepted").Parse(acceptedTemplate))
	declinedTmpl = template.Must(template.New("declined").Parse(declinedTemplate))
)

func RenderInvite(data InviteData) (string, error) {
	return render(inviteTmpl, data)
}

func RenderAccepted(data ReplyData) (string, error) {
	return render(acceptedTmpl, data)
}

func RenderDeclined(data ReplyData) (string, error) {
	return render(declinedTmpl, data)
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

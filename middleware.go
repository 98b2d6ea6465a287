package main

// CommandHandlerFunc handles a command or menu button; args holds the command arguments.
type CommandHandlerFunc func(b *Bot, req *request, args string)

// sendDeniedMessage tells the user the action needs a role they do not have
func sendDeniedMessage(b *Bot, req *request, action string) {
	req.log.Info("access denied", "action", action)
	b.reply(req, "You are not authorized to "+action+".")
}

// AdminCheckMiddleware wraps a handler with admin verification
func AdminCheckMiddleware(action string, handler CommandHandlerFunc) CommandHandlerFunc {
	return func(b *Bot, req *request, args string) {
		if !req.roles.IsAdmin(req.username) {
			sendDeniedMessage(b, req, action)
			return
		}
		handler(b, req, args)
	}
}

// SuperAdminCheckMiddleware wraps a handler with super-admin verification
func SuperAdminCheckMiddleware(action string, handler CommandHandlerFunc) CommandHandlerFunc {
	return func(b *Bot, req *request, args string) {
		if !req.roles.IsSuperAdmin(req.username) {
			sendDeniedMessage(b, req, action)
			return
		}
		handler(b, req, args)
	}
}

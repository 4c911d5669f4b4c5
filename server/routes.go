package server

func (s *Server) initRoutes() {
	api := s.APIMiddleware()
	authed := append(s.APIMiddleware(), s.RequireAuth())

	s.RegisterRouteFunc("GET /{$}", ChainMiddleware(s.IndexHandler(), api...))

	// Account and session lifecycle
	s.RegisterRouteFunc("POST /signup", ChainMiddleware(s.SignupHandler(), api...))
	s.RegisterRouteFunc("POST /login", ChainMiddleware(s.LoginHandler(), api...))
	s.RegisterRouteFunc("POST /logout", ChainMiddleware(s.LogoutHandler(), authed...))
	s.RegisterRouteFunc("POST /renew-token", ChainMiddleware(s.RenewTokenHandler(), authed...))

	// User info
	s.RegisterRouteFunc("GET /me", ChainMiddleware(s.MeHandler(), authed...))
	s.RegisterRouteFunc("GET /all", ChainMiddleware(s.AllUsersHandler(), api...))

	// Demo endpoints exercising the policy layer
	s.RegisterRouteFunc("GET /protected", ChainMiddleware(s.ProtectedHandler(), authed...))
	s.RegisterRouteFunc("GET /super_protected", ChainMiddleware(s.SuperProtectedHandler(), append(authed, s.RequireSuperuser())...))
}
